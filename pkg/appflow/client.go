package appflow

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Client is the build-hosting API surface the device needs. Calls are
// independent; listing is safe to repeat, deploying is not retried here.
type Client interface {
	ListBuilds(ctx context.Context) ([]Build, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	DeployBuild(ctx context.Context, channelID, buildID string) error
}

type Options struct {
	APIURL     string
	GraphQLURL string
	AppID      string
	Token      string
	Transport  Transport
}

type APIClient struct {
	opts Options
}

var _ Client = (*APIClient)(nil)

func New(opts Options) (*APIClient, error) {
	if opts.APIURL == "" {
		return nil, errors.New("missing API URL")
	}
	if opts.GraphQLURL == "" {
		return nil, errors.New("missing GraphQL URL")
	}
	if opts.AppID == "" {
		return nil, errors.New("missing app id")
	}
	if opts.Transport == nil {
		opts.Transport = NewHTTPTransport(0)
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	return &APIClient{opts: opts}, nil
}

func (c *APIClient) AppID() string { return c.opts.AppID }

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

func (c *APIClient) ListBuilds(ctx context.Context) ([]Build, error) {
	b, err := c.query(ctx, buildsListOperation, buildsListQuery, map[string]any{
		"appId": c.opts.AppID,
		"first": 1,
	})
	if err != nil {
		return nil, err
	}
	return ParseBuilds(b)
}

func (c *APIClient) ListChannels(ctx context.Context) ([]Channel, error) {
	b, err := c.query(ctx, getChannelsOperation, getChannelsQuery, map[string]any{
		"appId": c.opts.AppID,
	})
	if err != nil {
		return nil, err
	}
	return ParseChannels(b)
}

func (c *APIClient) DeployBuild(ctx context.Context, channelID, buildID string) error {
	const op = "deploy"
	if channelID == "" || buildID == "" {
		return &Failure{Kind: KindDeploy, Op: op, Err: errors.New("channel id and build id are required")}
	}
	endpoint := c.opts.APIURL + "/apps/" + url.PathEscape(c.opts.AppID) + "/channels/" + url.PathEscape(channelID)
	_, err := c.opts.Transport.PatchJSON(ctx, endpoint, map[string]string{"snapshot_id": buildID}, c.headers())
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return &Failure{Kind: KindDeploy, Op: op, Status: se.Status, Err: err}
	}
	return &Failure{Kind: KindTransient, Op: op, Err: err}
}

func (c *APIClient) query(ctx context.Context, op, query string, vars map[string]any) ([]byte, error) {
	body := graphQLRequest{OperationName: op, Query: query, Variables: vars}
	b, err := c.opts.Transport.PostJSON(ctx, c.opts.GraphQLURL, body, c.headers())
	if err != nil {
		f := &Failure{Kind: KindTransient, Op: op, Err: err}
		var se *StatusError
		if errors.As(err, &se) {
			f.Status = se.Status
		}
		return nil, f
	}
	return b, nil
}

func (c *APIClient) headers() map[string]string {
	h := map[string]string{}
	if c.opts.Token != "" {
		h["Authorization"] = "Bearer " + c.opts.Token
	}
	return h
}

// ParseBuilds reads data.app.builds.edges[].node from a BuildsList response.
func ParseBuilds(b []byte) ([]Build, error) {
	res, err := parseGraphQL(buildsListOperation, b)
	if err != nil {
		return nil, err
	}
	edges := res.Get("data.app.builds.edges")
	if !edges.IsArray() {
		return nil, malformed(buildsListOperation, "missing data.app.builds.edges")
	}
	builds := []Build{}
	for _, e := range edges.Array() {
		n := e.Get("node")
		if !n.IsObject() {
			continue
		}
		builds = append(builds, Build{
			Typename: n.Get("__typename").String(),
			ID:       n.Get("id").String(),
			Number:   n.Get("number").Int(),
			JobID:    n.Get("jobId").Int(),
			UUID:     n.Get("uuid").String(),
			AppID:    n.Get("app.id").String(),
		})
	}
	return builds, nil
}

// ParseChannels reads data.app.channels.edges[].node from a GetChannels
// response. The bound build is taken from build.uuid, falling back to
// build.id; both shapes have been served by the API.
func ParseChannels(b []byte) ([]Channel, error) {
	res, err := parseGraphQL(getChannelsOperation, b)
	if err != nil {
		return nil, err
	}
	edges := res.Get("data.app.channels.edges")
	if !edges.IsArray() {
		return nil, malformed(getChannelsOperation, "missing data.app.channels.edges")
	}
	channels := []Channel{}
	for _, e := range edges.Array() {
		n := e.Get("node")
		if !n.IsObject() {
			continue
		}
		channels = append(channels, Channel{
			ID:           n.Get("id").String(),
			Name:         n.Get("name").String(),
			CurrentBuild: buildRef(n.Get("build")),
		})
	}
	return channels, nil
}

func buildRef(build gjson.Result) string {
	if !build.IsObject() {
		return ""
	}
	for _, key := range []string{"uuid", "id"} {
		if v := build.Get(key); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseGraphQL(op string, b []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(b) {
		return gjson.Result{}, malformed(op, "invalid json response")
	}
	res := gjson.ParseBytes(b)
	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return gjson.Result{}, malformed(op, "graphql error: %s", errs.Array()[0].Get("message").String())
	}
	return res, nil
}
