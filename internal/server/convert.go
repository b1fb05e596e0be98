package server

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// fromStruct decodes a request Struct into v through its JSON form, so the
// tri-state Optional fields see null and absent keys exactly as over HTTP.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return inputError("invalid request: " + err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return inputError("invalid request: " + err.Error())
	}
	return nil
}

// toStruct encodes v, which must marshal to a JSON object, as a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// grpcError maps domain errors to status codes. The error code travels in
// the message prefix so clients can recover the kind.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	var ie inputError
	if errors.As(err, &ie) {
		return status.Error(codes.InvalidArgument, model.CodeInvalidInput+": "+ie.Error())
	}
	switch code := model.ErrorCode(err); code {
	case "":
		return status.Errorf(codes.Internal, "%v", err)
	case model.CodeNotFound:
		return status.Error(codes.NotFound, code+": "+err.Error())
	default:
		return status.Error(codes.InvalidArgument, code+": "+err.Error())
	}
}

// idRequest is embedded by requests addressing one entity.
type idRequest struct {
	ID string `json:"id"`
}

func requireID(in *structpb.Struct) (string, error) {
	var req idRequest
	if err := fromStruct(in, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		return "", inputError("id is required")
	}
	return req.ID, nil
}

// CreateProfile creates a profile from {"name", "timezone"}.
func (s *Server) CreateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createProfileInput
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	p, err := s.createProfile(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(p)
}

// ListProfiles lists active profiles, or all with {"all": true}.
func (s *Server) ListProfiles(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		All bool `json:"all"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	profiles, err := s.listProfiles(ctx, req.All)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"profiles": profiles})
}

// UpdateProfile patches the profile named by "id".
func (s *Server) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, grpcError(err)
	}
	var req updateProfileInput
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	p, err := s.updateProfile(ctx, id, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(p)
}

// CreateEvent creates an event.
func (s *Server) CreateEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createEventInput
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	e, err := s.createEvent(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(e)
}

// UpdateEvent patches the event named by "id" and returns it with the
// ledger entry the update appended.
func (s *Server) UpdateEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, grpcError(err)
	}
	var req updateEventInput
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	e, entry, err := s.updateEvent(ctx, id, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{
		"event": e,
		"entry": newLogViews([]model.UpdateLogEntry{entry})[0],
	})
}

// GetEvent returns the event named by "id", projected into "tz" when given.
func (s *Server) GetEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		idRequest
		TZ string `json:"tz"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	if req.ID == "" {
		return nil, grpcError(inputError("id is required"))
	}
	e, err := s.getEvent(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	views, err := newEventViews([]*model.Event{e}, req.TZ)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(views[0])
}

// ListEvents lists events by start, optionally for one "profile_id" and
// projected into "tz".
func (s *Server) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		model.EventFilter
		TZ string `json:"tz"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	evts, err := s.listEvents(ctx, req.EventFilter)
	if err != nil {
		return nil, grpcError(err)
	}
	views, err := newEventViews(evts, req.TZ)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"events": views, "total": len(views)})
}

// ListEventLogs returns the ledger of the event named by "id".
func (s *Server) ListEventLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, grpcError(err)
	}
	logs, err := s.listEventLogs(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"logs": newLogViews(logs)})
}
