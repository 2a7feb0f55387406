package testproto

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry holds the runtime-built descriptors of grpc/testing/test.proto.
type Registry struct {
	file protoreflect.FileDescriptor

	Empty                       protoreflect.MessageDescriptor
	BoolValue                   protoreflect.MessageDescriptor
	Payload                     protoreflect.MessageDescriptor
	EchoStatus                  protoreflect.MessageDescriptor
	SimpleRequest               protoreflect.MessageDescriptor
	SimpleResponse              protoreflect.MessageDescriptor
	StreamingInputCallRequest   protoreflect.MessageDescriptor
	StreamingInputCallResponse  protoreflect.MessageDescriptor
	ResponseParameters          protoreflect.MessageDescriptor
	StreamingOutputCallRequest  protoreflect.MessageDescriptor
	StreamingOutputCallResponse protoreflect.MessageDescriptor
}

// Build constructs a fresh Registry.
func Build() (*Registry, error) {
	fd, err := buildFile()
	if err != nil {
		return nil, fmt.Errorf("testproto: build %s: %w", FilePath, err)
	}
	msgs := fd.Messages()
	return &Registry{
		file:                        fd,
		Empty:                       msgs.ByName("Empty"),
		BoolValue:                   msgs.ByName("BoolValue"),
		Payload:                     msgs.ByName("Payload"),
		EchoStatus:                  msgs.ByName("EchoStatus"),
		SimpleRequest:               msgs.ByName("SimpleRequest"),
		SimpleResponse:              msgs.ByName("SimpleResponse"),
		StreamingInputCallRequest:   msgs.ByName("StreamingInputCallRequest"),
		StreamingInputCallResponse:  msgs.ByName("StreamingInputCallResponse"),
		ResponseParameters:          msgs.ByName("ResponseParameters"),
		StreamingOutputCallRequest:  msgs.ByName("StreamingOutputCallRequest"),
		StreamingOutputCallResponse: msgs.ByName("StreamingOutputCallResponse"),
	}, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := Build()
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the process-wide Registry. The descriptors are static, so a
// build failure is a programming error and panics.
func Default() *Registry { return defaultRegistry() }

// File returns the file descriptor.
func (r *Registry) File() protoreflect.FileDescriptor { return r.file }

// Service returns the named service of the grpc.testing package.
func (r *Registry) Service(name protoreflect.Name) protoreflect.ServiceDescriptor {
	sd := r.file.Services().ByName(name)
	if sd == nil {
		panic(fmt.Sprintf("testproto: unknown service %s.%s", Package, name))
	}
	return sd
}

// Method returns a method descriptor, e.g. Method("TestService", "UnaryCall").
func (r *Registry) Method(service, method protoreflect.Name) protoreflect.MethodDescriptor {
	md := r.Service(service).Methods().ByName(method)
	if md == nil {
		panic(fmt.Sprintf("testproto: unknown method %s.%s/%s", Package, service, method))
	}
	return md
}

// FullMethod returns the HTTP/2 path of a method: "/grpc.testing.TestService/UnaryCall".
func FullMethod(md protoreflect.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
}
