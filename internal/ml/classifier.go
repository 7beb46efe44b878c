package ml

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
)

// ClassifyMethod is the full gRPC method name of the classifier service.
const ClassifyMethod = "/classification.ClassifierService/Classify"

// NoClass marks pixels the classifier did not label.
const NoClass = -1

// Classification holds one class per grid pixel.
type Classification struct {
	Tags    engine.Tags
	Classes []int
}

// Client sends packed composites to the external classifier.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// DialOptions builds transport options from the environment: TLS with
// client-credentials tokens when CLASSIFIER_TOKEN_URL is set, plaintext
// otherwise.
func DialOptions(ctx context.Context) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(64*1024*1024),
			grpc.MaxCallSendMsgSize(64*1024*1024),
		),
	}
	if properties.ClassifierTokenURL() == "" {
		return append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	cfg := &clientcredentials.Config{
		ClientID:     properties.ClassifierClientID(),
		ClientSecret: properties.ClassifierClientSecret(),
		TokenURL:     properties.ClassifierTokenURL(),
	}
	return append(opts,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})),
		grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: cfg.TokenSource(ctx)}),
	)
}

func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to classifier: %w", err)
	}
	return &Client{conn: conn, timeout: 15 * time.Minute}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Classify sends every valid AOI pixel of out and returns the class raster.
func (c *Client) Classify(ctx context.Context, out *engine.AnnualOutput) (*Classification, error) {
	req, err := EncodeRequest(out)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, ClassifyMethod, req, resp); err != nil {
		return nil, fmt.Errorf("error calling Classify: %w", err)
	}
	return DecodeResponse(out, resp)
}

// EncodeRequest lays out {tags, bands, pixels: [{index, values}]}.
func EncodeRequest(out *engine.AnnualOutput) (*structpb.Struct, error) {
	tags := map[string]interface{}{}
	for k, v := range out.Tags.Map() {
		tags[k] = v
	}
	bands := make([]interface{}, len(out.Bands))
	for i, b := range out.Bands {
		bands[i] = b.Name
	}

	var pixels []interface{}
	for i, inside := range out.AOI {
		if !inside {
			continue
		}
		values := make([]interface{}, len(out.Bands))
		valid := true
		for k, b := range out.Bands {
			if !b.Valid[i] {
				valid = false
				break
			}
			values[k] = float64(b.Values[i])
		}
		if valid {
			pixels = append(pixels, map[string]interface{}{"index": i, "values": values})
		}
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"tags":   tags,
		"bands":  bands,
		"pixels": pixels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}
	return req, nil
}

// DecodeResponse reads {classes: [{index, class}]}.
func DecodeResponse(out *engine.AnnualOutput, resp *structpb.Struct) (*Classification, error) {
	n := out.Composite.Grid().Len()
	classes := make([]int, n)
	for i := range classes {
		classes[i] = NoClass
	}

	list := resp.GetFields()["classes"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("classify response has no classes list")
	}
	for _, v := range list.GetValues() {
		entry := v.GetStructValue().GetFields()
		idx := int(entry["index"].GetNumberValue())
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("classify response index %d outside grid of %d", idx, n)
		}
		classes[idx] = int(entry["class"].GetNumberValue())
	}
	return &Classification{Tags: out.Tags, Classes: classes}, nil
}
