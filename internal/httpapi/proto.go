package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/command"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/types"
)

// maxRequestBody caps command bodies in either encoding. The largest
// command, every non-conflicting field with a long display text, is well
// under 1 KiB.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// isProtobuf reports whether the request body is a protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// wantsProtobuf reports whether the client asked for a protobuf response.
func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, protobufContentType) ||
		strings.Contains(accept, "application/protobuf")
}

func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeStruct marshals msg and writes it with the given HTTP status.
func writeStruct(w http.ResponseWriter, status int, msg *structpb.Struct) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// readCommandProto decodes a google.protobuf.Struct carrying the same keys
// as the JSON command body.
func readCommandProto(r *http.Request) (command.Command, error) {
	var msg structpb.Struct
	if err := readProto(r, &msg); err != nil {
		return command.Command{}, err
	}

	raw, err := json.Marshal(msg.AsMap())
	if err != nil {
		return command.Command{}, err
	}

	var cmd command.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return command.Command{}, err
	}
	return cmd, nil
}

func commandResponseToStruct(r types.CommandResponse) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":        structpb.NewBoolValue(r.OK),
		"frame_id":  structpb.NewStringValue(r.FrameID),
		"device_id": structpb.NewStringValue(r.DeviceID),
		"frame":     structpb.NewStringValue(r.Frame),
		"mask":      structpb.NewNumberValue(float64(r.Mask)),
		"sent_at":   structpb.NewStringValue(r.SentAt),
	}}
}

func heartbeatToStruct(deviceID string, h heartbeat.Heartbeat) (*structpb.Struct, error) {
	status := make(map[string]any, 5)
	for _, s := range h.Status.Subsystems() {
		entry := map[string]any{"state": s.Status.State.String()}
		if s.Status.Reason != "" {
			entry["reason"] = s.Status.Reason
		}
		status[s.Name] = entry
	}

	var code any
	if h.HasCode() {
		code = h.Code
	}

	return structpb.NewStruct(map[string]any{
		"device_id": deviceID,
		"status":    status,
		"code":      code,
		"health":    h.Health,
		"timestamp": h.Timestamp,
		"all_ok":    h.AllOK(),
	})
}
