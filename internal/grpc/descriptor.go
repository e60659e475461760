package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// DescriptorPath is the file the Dashboard service is registered under, so
// server reflection can describe it without generated code.
const DescriptorPath = "customerintel/v1/dashboard.proto"

func dashboardFileProto() *descriptorpb.FileDescriptorProto {
	structName := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())

	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(DashboardServiceDesc.Methods))
	for _, m := range DashboardServiceDesc.Methods {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.MethodName),
			InputType:  proto.String(structName),
			OutputType: proto.String(structName),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(DescriptorPath),
		Package:    proto.String("customerintel.v1"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("Dashboard"),
			Method: methods,
		}},
		Syntax: proto.String("proto3"),
	}
}

func registerFileDescriptor(files *protoregistry.Files) error {
	if _, err := files.FindFileByPath(DescriptorPath); err == nil {
		return nil
	}
	fd, err := protodesc.NewFile(dashboardFileProto(), files)
	if err != nil {
		return fmt.Errorf("build %s: %w", DescriptorPath, err)
	}
	return files.RegisterFile(fd)
}

func init() {
	if err := registerFileDescriptor(protoregistry.GlobalFiles); err != nil {
		panic(err)
	}
}
