package frame

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// BuiltinDescriptorSet constructs the descriptor for the deployed
// frames.proto contract:
//
//	syntax = "proto3";
//	package pipecat;
//
//	message TextFrame {
//	  uint64 id = 1;
//	  string name = 2;
//	  string text = 3;
//	}
//
//	message AudioRawFrame {
//	  uint64 id = 1;
//	  string name = 2;
//	  bytes audio = 3;
//	  uint32 sample_rate = 4;
//	  uint32 num_channels = 5;
//	}
//
//	message TranscriptionFrame {
//	  uint64 id = 1;
//	  string name = 2;
//	  string text = 3;
//	  string user_id = 4;
//	  string timestamp = 5;
//	}
//
//	message Frame {
//	  oneof frame {
//	    TextFrame text = 1;
//	    AudioRawFrame audio = 2;
//	    TranscriptionFrame transcription = 3;
//	  }
//	}
//
// Deployments that ship a newer schema point the codec at their compiled
// FileDescriptorSet instead; the codec only requires that pipecat.Frame keeps
// an `audio` message variant with `audio`, `sample_rate`, and `num_channels`.
func BuiltinDescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{{
			Name:    proto.String("frames.proto"),
			Package: proto.String("pipecat"),
			Syntax:  proto.String("proto3"),
			MessageType: []*descriptorpb.DescriptorProto{
				{
					Name: proto.String("TextFrame"),
					Field: []*descriptorpb.FieldDescriptorProto{
						scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
						scalarField("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalarField("text", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					},
				},
				{
					Name: proto.String("AudioRawFrame"),
					Field: []*descriptorpb.FieldDescriptorProto{
						scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
						scalarField("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalarField("audio", 3, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
						scalarField("sample_rate", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
						scalarField("num_channels", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
					},
				},
				{
					Name: proto.String("TranscriptionFrame"),
					Field: []*descriptorpb.FieldDescriptorProto{
						scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
						scalarField("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalarField("text", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalarField("user_id", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalarField("timestamp", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					},
				},
				{
					Name: proto.String("Frame"),
					OneofDecl: []*descriptorpb.OneofDescriptorProto{
						{Name: proto.String("frame")},
					},
					Field: []*descriptorpb.FieldDescriptorProto{
						variantField("text", 1, ".pipecat.TextFrame"),
						variantField("audio", 2, ".pipecat.AudioRawFrame"),
						variantField("transcription", 3, ".pipecat.TranscriptionFrame"),
					},
				},
			},
		}},
	}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func variantField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:       proto.String(name),
		Number:     proto.Int32(number),
		Label:      descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:       descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName:   proto.String(typeName),
		OneofIndex: proto.Int32(0),
	}
}
