package testproto

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// PayloadType mirrors the grpc.testing.PayloadType enum.
type PayloadType int32

const Compressable PayloadType = 0

type Payload struct {
	Type PayloadType
	Body []byte
}

// EchoStatus asks the peer to terminate the call with this status.
type EchoStatus struct {
	Code    int32
	Message string
}

// Optional bool fields are carried as *bool; nil leaves the BoolValue unset.
type SimpleRequest struct {
	ResponseType       PayloadType
	ResponseSize       int32
	Payload            *Payload
	FillUsername       bool
	FillOAuthScope     bool
	ResponseCompressed *bool
	ResponseStatus     *EchoStatus
	ExpectCompressed   *bool
}

type SimpleResponse struct {
	Payload    *Payload
	Username   string
	OAuthScope string
}

type StreamingInputCallRequest struct {
	Payload          *Payload
	ExpectCompressed *bool
}

type StreamingInputCallResponse struct {
	AggregatedPayloadSize int32
}

type ResponseParameters struct {
	Size       int32
	IntervalUS int32
	Compressed *bool
}

type StreamingOutputCallRequest struct {
	ResponseType       PayloadType
	ResponseParameters []ResponseParameters
	Payload            *Payload
	ResponseStatus     *EchoStatus
}

type StreamingOutputCallResponse struct {
	Payload *Payload
}

// Bool returns a pointer to v, for the optional BoolValue fields.
func Bool(v bool) *bool { return &v }

// ---------------- encoding ----------------

func fieldOf(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func setInt32(m *dynamicpb.Message, name protoreflect.Name, v int32) {
	if v != 0 {
		m.Set(fieldOf(m, name), protoreflect.ValueOfInt32(v))
	}
}

func setEnum(m *dynamicpb.Message, name protoreflect.Name, v PayloadType) {
	if v != 0 {
		m.Set(fieldOf(m, name), protoreflect.ValueOfEnum(protoreflect.EnumNumber(v)))
	}
}

func setBool(m *dynamicpb.Message, name protoreflect.Name, v bool) {
	if v {
		m.Set(fieldOf(m, name), protoreflect.ValueOfBool(v))
	}
}

func setString(m *dynamicpb.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(fieldOf(m, name), protoreflect.ValueOfString(v))
	}
}

func setMessage(m *dynamicpb.Message, name protoreflect.Name, sub *dynamicpb.Message) {
	if sub != nil {
		m.Set(fieldOf(m, name), protoreflect.ValueOfMessage(sub))
	}
}

func (r *Registry) encodePayload(p *Payload) *dynamicpb.Message {
	if p == nil {
		return nil
	}
	m := dynamicpb.NewMessage(r.Payload)
	setEnum(m, "type", p.Type)
	m.Set(fieldOf(m, "body"), protoreflect.ValueOfBytes(p.Body))
	return m
}

func (r *Registry) encodeBoolValue(v *bool) *dynamicpb.Message {
	if v == nil {
		return nil
	}
	m := dynamicpb.NewMessage(r.BoolValue)
	setBool(m, "value", *v)
	return m
}

func (r *Registry) encodeEchoStatus(s *EchoStatus) *dynamicpb.Message {
	if s == nil {
		return nil
	}
	m := dynamicpb.NewMessage(r.EchoStatus)
	setInt32(m, "code", s.Code)
	setString(m, "message", s.Message)
	return m
}

func (r *Registry) NewEmpty() *dynamicpb.Message { return dynamicpb.NewMessage(r.Empty) }

func (r *Registry) EncodeSimpleRequest(v SimpleRequest) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.SimpleRequest)
	setEnum(m, "response_type", v.ResponseType)
	setInt32(m, "response_size", v.ResponseSize)
	setMessage(m, "payload", r.encodePayload(v.Payload))
	setBool(m, "fill_username", v.FillUsername)
	setBool(m, "fill_oauth_scope", v.FillOAuthScope)
	setMessage(m, "response_compressed", r.encodeBoolValue(v.ResponseCompressed))
	setMessage(m, "response_status", r.encodeEchoStatus(v.ResponseStatus))
	setMessage(m, "expect_compressed", r.encodeBoolValue(v.ExpectCompressed))
	return m
}

func (r *Registry) EncodeSimpleResponse(v SimpleResponse) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.SimpleResponse)
	setMessage(m, "payload", r.encodePayload(v.Payload))
	setString(m, "username", v.Username)
	setString(m, "oauth_scope", v.OAuthScope)
	return m
}

func (r *Registry) EncodeStreamingInputCallRequest(v StreamingInputCallRequest) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.StreamingInputCallRequest)
	setMessage(m, "payload", r.encodePayload(v.Payload))
	setMessage(m, "expect_compressed", r.encodeBoolValue(v.ExpectCompressed))
	return m
}

func (r *Registry) EncodeStreamingInputCallResponse(v StreamingInputCallResponse) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.StreamingInputCallResponse)
	setInt32(m, "aggregated_payload_size", v.AggregatedPayloadSize)
	return m
}

func (r *Registry) EncodeStreamingOutputCallRequest(v StreamingOutputCallRequest) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.StreamingOutputCallRequest)
	setEnum(m, "response_type", v.ResponseType)
	if len(v.ResponseParameters) > 0 {
		list := m.Mutable(fieldOf(m, "response_parameters")).List()
		for _, p := range v.ResponseParameters {
			pm := dynamicpb.NewMessage(r.ResponseParameters)
			setInt32(pm, "size", p.Size)
			setInt32(pm, "interval_us", p.IntervalUS)
			setMessage(pm, "compressed", r.encodeBoolValue(p.Compressed))
			list.Append(protoreflect.ValueOfMessage(pm))
		}
	}
	setMessage(m, "payload", r.encodePayload(v.Payload))
	setMessage(m, "response_status", r.encodeEchoStatus(v.ResponseStatus))
	return m
}

func (r *Registry) EncodeStreamingOutputCallResponse(v StreamingOutputCallResponse) *dynamicpb.Message {
	m := dynamicpb.NewMessage(r.StreamingOutputCallResponse)
	setMessage(m, "payload", r.encodePayload(v.Payload))
	return m
}

// ---------------- decoding ----------------
//
// Decoders accept any message of the matching descriptor and never fail:
// unset fields decode to their zero value, a nil message to the zero struct.

func sub(m protoreflect.Message, name protoreflect.Name) (protoreflect.Message, bool) {
	fd := fieldOf(m, name)
	if fd == nil || !m.Has(fd) {
		return nil, false
	}
	return m.Get(fd).Message(), true
}

func getInt32(m protoreflect.Message, name protoreflect.Name) int32 {
	if fd := fieldOf(m, name); fd != nil {
		return int32(m.Get(fd).Int())
	}
	return 0
}

func getBool(m protoreflect.Message, name protoreflect.Name) bool {
	if fd := fieldOf(m, name); fd != nil {
		return m.Get(fd).Bool()
	}
	return false
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	if fd := fieldOf(m, name); fd != nil {
		return m.Get(fd).String()
	}
	return ""
}

func getEnum(m protoreflect.Message, name protoreflect.Name) PayloadType {
	if fd := fieldOf(m, name); fd != nil {
		return PayloadType(m.Get(fd).Enum())
	}
	return 0
}

func decodePayload(m protoreflect.Message, name protoreflect.Name) *Payload {
	pm, ok := sub(m, name)
	if !ok {
		return nil
	}
	p := &Payload{Type: getEnum(pm, "type")}
	if fd := fieldOf(pm, "body"); fd != nil {
		p.Body = append([]byte{}, pm.Get(fd).Bytes()...)
	}
	return p
}

func decodeBoolValue(m protoreflect.Message, name protoreflect.Name) *bool {
	bm, ok := sub(m, name)
	if !ok {
		return nil
	}
	return Bool(getBool(bm, "value"))
}

func decodeEchoStatus(m protoreflect.Message, name protoreflect.Name) *EchoStatus {
	sm, ok := sub(m, name)
	if !ok {
		return nil
	}
	return &EchoStatus{Code: getInt32(sm, "code"), Message: getString(sm, "message")}
}

func DecodeSimpleRequest(m protoreflect.Message) SimpleRequest {
	if m == nil {
		return SimpleRequest{}
	}
	return SimpleRequest{
		ResponseType:       getEnum(m, "response_type"),
		ResponseSize:       getInt32(m, "response_size"),
		Payload:            decodePayload(m, "payload"),
		FillUsername:       getBool(m, "fill_username"),
		FillOAuthScope:     getBool(m, "fill_oauth_scope"),
		ResponseCompressed: decodeBoolValue(m, "response_compressed"),
		ResponseStatus:     decodeEchoStatus(m, "response_status"),
		ExpectCompressed:   decodeBoolValue(m, "expect_compressed"),
	}
}

func DecodeSimpleResponse(m protoreflect.Message) SimpleResponse {
	if m == nil {
		return SimpleResponse{}
	}
	return SimpleResponse{
		Payload:    decodePayload(m, "payload"),
		Username:   getString(m, "username"),
		OAuthScope: getString(m, "oauth_scope"),
	}
}

func DecodeStreamingInputCallRequest(m protoreflect.Message) StreamingInputCallRequest {
	if m == nil {
		return StreamingInputCallRequest{}
	}
	return StreamingInputCallRequest{
		Payload:          decodePayload(m, "payload"),
		ExpectCompressed: decodeBoolValue(m, "expect_compressed"),
	}
}

func DecodeStreamingInputCallResponse(m protoreflect.Message) StreamingInputCallResponse {
	if m == nil {
		return StreamingInputCallResponse{}
	}
	return StreamingInputCallResponse{AggregatedPayloadSize: getInt32(m, "aggregated_payload_size")}
}

func DecodeStreamingOutputCallRequest(m protoreflect.Message) StreamingOutputCallRequest {
	if m == nil {
		return StreamingOutputCallRequest{}
	}
	v := StreamingOutputCallRequest{
		ResponseType:   getEnum(m, "response_type"),
		Payload:        decodePayload(m, "payload"),
		ResponseStatus: decodeEchoStatus(m, "response_status"),
	}
	if fd := fieldOf(m, "response_parameters"); fd != nil {
		list := m.Get(fd).List()
		for i := 0; i < list.Len(); i++ {
			pm := list.Get(i).Message()
			v.ResponseParameters = append(v.ResponseParameters, ResponseParameters{
				Size:       getInt32(pm, "size"),
				IntervalUS: getInt32(pm, "interval_us"),
				Compressed: decodeBoolValue(pm, "compressed"),
			})
		}
	}
	return v
}

func DecodeStreamingOutputCallResponse(m protoreflect.Message) StreamingOutputCallResponse {
	if m == nil {
		return StreamingOutputCallResponse{}
	}
	return StreamingOutputCallResponse{Payload: decodePayload(m, "payload")}
}

// BodyLen returns the body length of p, treating a missing payload as empty.
func (p *Payload) BodyLen() int {
	if p == nil {
		return 0
	}
	return len(p.Body)
}
