package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// serviceName must match the server's registered service.
const serviceName = "rendezvous.v1.Scheduler"

// GRPCClient implements Client using the gRPC transport. Every call sends
// and receives a google.protobuf.Struct with the HTTP API's JSON shapes.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Profiles ---

func (c *GRPCClient) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*model.Profile, error) {
	var p model.Profile
	if err := c.call(ctx, "CreateProfile", req, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *GRPCClient) ListProfiles(ctx context.Context, includeInactive bool) ([]*model.Profile, error) {
	var resp struct {
		Profiles []*model.Profile `json:"profiles"`
	}
	if err := c.call(ctx, "ListProfiles", nil, map[string]any{"all": includeInactive}, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

func (c *GRPCClient) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*model.Profile, error) {
	var p model.Profile
	if err := c.call(ctx, "UpdateProfile", req, map[string]any{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Events ---

func (c *GRPCClient) CreateEvent(ctx context.Context, req *CreateEventRequest) (*model.Event, error) {
	var e model.Event
	if err := c.call(ctx, "CreateEvent", req, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *GRPCClient) GetEvent(ctx context.Context, id, tz string) (*EventView, error) {
	extra := map[string]any{"id": id}
	if tz != "" {
		extra["tz"] = tz
	}
	var v EventView
	if err := c.call(ctx, "GetEvent", nil, extra, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *GRPCClient) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	var resp ListEventsResponse
	if err := c.call(ctx, "ListEvents", req, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*UpdateEventResponse, error) {
	var resp UpdateEventResponse
	if err := c.call(ctx, "UpdateEvent", req, map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) ListEventLogs(ctx context.Context, id string) ([]LogEntry, error) {
	var resp struct {
		Logs []LogEntry `json:"logs"`
	}
	if err := c.call(ctx, "ListEventLogs", nil, map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// --- Health ---

// Health asks the standard health service about the scheduler. A serving
// scheduler reports "ok", matching the HTTP endpoint.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return "", fromStatus(err)
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return strings.ToLower(resp.GetStatus().String()), nil
}

// --- internal helpers ---

// call invokes method with body merged with extra as the request Struct and
// decodes the response Struct into result.
func (c *GRPCClient) call(ctx context.Context, method string, body any, extra map[string]any, result any) error {
	in, err := requestStruct(body, extra)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return fromStatus(err)
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// requestStruct goes through JSON so Optional fields keep their absent,
// null and set states.
func requestStruct(body any, extra map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return in, nil
}

// fromStatus turns a status error into an APIError. The server puts the
// error code before the first ": " of the message.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	apiErr := &APIError{Message: st.Message()}
	if code, _, found := strings.Cut(st.Message(), ": "); found && model.KindForCode(code) != nil {
		apiErr.Code = code
	}
	return apiErr
}
