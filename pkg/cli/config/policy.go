package config

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/opac"
	"github.com/xiashuijun/elasticvc/pkg/controller/server"
	"github.com/urfave/cli/v3"
)

// Policy evaluates an OPA policy bundle before destructive admin endpoints
// (unlock, deleteAll) run, alongside the AdminToken check server.Option
// already provides.
type Policy struct {
	path string
}

func (x *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-path",
			Usage:       "Path to a Rego policy file gating admin endpoints (optional)",
			Category:    "Policy",
			Sources:     cli.EnvVars("ELASTICVC_POLICY_PATH"),
			Destination: &x.path,
		},
	}
}

func (x *Policy) Enabled() bool {
	return x.path != ""
}

func (x *Policy) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("path", x.path),
	)
}

func (x *Policy) NewAuthorizer(ctx context.Context) (server.AdminAuthorizer, error) {
	client, err := opac.New(opac.Files(x.path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policy", goerr.V("path", x.path))
	}
	return &policyAuthorizer{client: client}, nil
}

type policyInput struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type policyOutput struct {
	Allow bool `json:"allow"`
}

type policyAuthorizer struct {
	client *opac.Client
}

func (x *policyAuthorizer) Authorize(ctx context.Context, r *http.Request) error {
	var out policyOutput
	input := policyInput{Method: r.Method, Path: r.URL.Path}
	if err := x.client.Query(ctx, "data.authz", input, &out); err != nil {
		return goerr.Wrap(err, "failed to evaluate policy")
	}
	if !out.Allow {
		return goerr.New("policy denied request", goerr.V("method", input.Method), goerr.V("path", input.Path))
	}
	return nil
}
