package testproto

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	// FilePath is the path of the generated file descriptor.
	FilePath = "grpc/testing/test.proto"
	// Package is the proto package every interop message and service lives in.
	Package = "grpc.testing"

	TestServiceName          = "TestService"
	UnimplementedServiceName = "UnimplementedService"
)

// field describes a single message field for the builder tables below.
type field struct {
	name     protoreflect.Name
	number   protoreflect.FieldNumber
	typ      *protobuilder.FieldType
	repeated bool
}

type builder struct {
	file     *protobuilder.FileBuilder
	messages map[protoreflect.Name]*protobuilder.MessageBuilder
}

func (b *builder) message(name protoreflect.Name, doc string, fields ...field) *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage(name)
	mb.SetComments(comment(doc))
	for _, f := range fields {
		fb := protobuilder.NewField(f.name, f.typ)
		fb.SetNumber(f.number)
		if f.repeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
	}
	b.file.AddMessage(mb)
	b.messages[name] = mb
	return mb
}

func (b *builder) ref(name protoreflect.Name) *protobuilder.FieldType {
	return protobuilder.FieldTypeMessage(b.messages[name])
}

func (b *builder) method(sb *protobuilder.ServiceBuilder, name, in, out protoreflect.Name, clientStream, serverStream bool, doc string) {
	mb := protobuilder.NewMethod(
		name,
		protobuilder.RpcTypeMessage(b.messages[in], clientStream),
		protobuilder.RpcTypeMessage(b.messages[out], serverStream),
	)
	mb.SetComments(comment(doc))
	sb.AddMethod(mb)
}

// buildFile assembles grpc/testing/test.proto with the field numbers used by
// every interop server implementation.
func buildFile() (protoreflect.FileDescriptor, error) {
	b := &builder{
		file:     protobuilder.NewFile(FilePath),
		messages: make(map[protoreflect.Name]*protobuilder.MessageBuilder),
	}
	b.file.SetPackageName(Package)
	b.file.SetSyntax(protoreflect.Proto3)

	payloadType := protobuilder.NewEnum("PayloadType")
	payloadType.SetComments(comment("The type of payload that should be returned."))
	compressable := protobuilder.NewEnumValue("COMPRESSABLE")
	compressable.SetNumber(0)
	payloadType.AddValue(compressable)
	b.file.AddEnum(payloadType)
	enumType := protobuilder.FieldTypeEnum(payloadType)

	scalar := protobuilder.FieldTypeScalar

	b.message("Empty", "An empty message that you can re-use to avoid defining duplicated empty\nmessages in your project.")
	b.message("BoolValue", "Wrapper for bool values that need presence.",
		field{name: "value", number: 1, typ: scalar(protoreflect.BoolKind)},
	)
	b.message("Payload", "A block of data, to simply increase gRPC message size.",
		field{name: "type", number: 1, typ: enumType},
		field{name: "body", number: 2, typ: scalar(protoreflect.BytesKind)},
	)
	b.message("EchoStatus", "A protobuf representation for grpc status. Used by test clients to specify\na status that the server should attempt to return.",
		field{name: "code", number: 1, typ: scalar(protoreflect.Int32Kind)},
		field{name: "message", number: 2, typ: scalar(protoreflect.StringKind)},
	)
	b.message("SimpleRequest", "Unary request.",
		field{name: "response_type", number: 1, typ: enumType},
		field{name: "response_size", number: 2, typ: scalar(protoreflect.Int32Kind)},
		field{name: "payload", number: 3, typ: b.ref("Payload")},
		field{name: "fill_username", number: 4, typ: scalar(protoreflect.BoolKind)},
		field{name: "fill_oauth_scope", number: 5, typ: scalar(protoreflect.BoolKind)},
		field{name: "response_compressed", number: 6, typ: b.ref("BoolValue")},
		field{name: "response_status", number: 7, typ: b.ref("EchoStatus")},
		field{name: "expect_compressed", number: 8, typ: b.ref("BoolValue")},
	)
	b.message("SimpleResponse", "Unary response, as configured by the request.",
		field{name: "payload", number: 1, typ: b.ref("Payload")},
		field{name: "username", number: 2, typ: scalar(protoreflect.StringKind)},
		field{name: "oauth_scope", number: 3, typ: scalar(protoreflect.StringKind)},
	)
	b.message("StreamingInputCallRequest", "Client-streaming request.",
		field{name: "payload", number: 1, typ: b.ref("Payload")},
		field{name: "expect_compressed", number: 2, typ: b.ref("BoolValue")},
	)
	b.message("StreamingInputCallResponse", "Client-streaming response.",
		field{name: "aggregated_payload_size", number: 1, typ: scalar(protoreflect.Int32Kind)},
	)
	b.message("ResponseParameters", "Configuration for a particular response.",
		field{name: "size", number: 1, typ: scalar(protoreflect.Int32Kind)},
		field{name: "interval_us", number: 2, typ: scalar(protoreflect.Int32Kind)},
		field{name: "compressed", number: 3, typ: b.ref("BoolValue")},
	)
	b.message("StreamingOutputCallRequest", "Server-streaming request.",
		field{name: "response_type", number: 1, typ: enumType},
		field{name: "response_parameters", number: 2, typ: b.ref("ResponseParameters"), repeated: true},
		field{name: "payload", number: 3, typ: b.ref("Payload")},
		field{name: "response_status", number: 7, typ: b.ref("EchoStatus")},
	)
	b.message("StreamingOutputCallResponse", "Server-streaming response, as configured by the request and parameters.",
		field{name: "payload", number: 1, typ: b.ref("Payload")},
	)

	ts := protobuilder.NewService(TestServiceName)
	ts.SetComments(comment("A simple service to test the various types of RPCs and experiment with\nperformance with various types of payload."))
	b.method(ts, "EmptyCall", "Empty", "Empty", false, false, "One empty request followed by one empty response.")
	b.method(ts, "UnaryCall", "SimpleRequest", "SimpleResponse", false, false, "One request followed by one response.")
	b.method(ts, "CacheableUnaryCall", "SimpleRequest", "SimpleResponse", false, false, "One request followed by one response. Response has cache control\nheaders set such that a caching HTTP proxy can cache the response.")
	b.method(ts, "StreamingOutputCall", "StreamingOutputCallRequest", "StreamingOutputCallResponse", false, true, "One request followed by a sequence of responses (streamed download).")
	b.method(ts, "StreamingInputCall", "StreamingInputCallRequest", "StreamingInputCallResponse", true, false, "A sequence of requests followed by one response (streamed upload).")
	b.method(ts, "FullDuplexCall", "StreamingOutputCallRequest", "StreamingOutputCallResponse", true, true, "A sequence of requests with each request served by the server immediately.")
	b.method(ts, "HalfDuplexCall", "StreamingOutputCallRequest", "StreamingOutputCallResponse", true, true, "A sequence of requests followed by a sequence of responses.")
	b.method(ts, "UnimplementedCall", "Empty", "Empty", false, false, "The test server will not implement this method.")
	b.file.AddService(ts)

	us := protobuilder.NewService(UnimplementedServiceName)
	us.SetComments(comment("A simple service NOT implemented at servers so clients can test for\nthat case."))
	b.method(us, "UnimplementedCall", "Empty", "Empty", false, false, "")
	b.file.AddService(us)

	return b.file.Build()
}

func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	lines := strings.Split(desc, "\n")
	for i, line := range lines {
		lines[i] = " " + line
	}
	return protobuilder.Comments{LeadingComment: strings.Join(lines, "\n") + "\n"}
}
