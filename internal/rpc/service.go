package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
)

// #region service-desc
const (
	ServiceName = "fidelity.v1.FidelityService"
	ScoreMethod = "/" + ServiceName + "/Score"
)

// Message fields. Requests carry two number lists, responses two numbers.
const (
	fieldModelOutputs     = "model_outputs"
	fieldSurrogateOutputs = "surrogate_outputs"
	fieldCorrelation      = "correlation"
	fieldR2               = "r2"
)

// FidelityServer is the server API for the fidelity service.
type FidelityServer interface {
	Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func scoreHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FidelityServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScoreMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FidelityServer).Score(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes FidelityService. Messages are google.protobuf.Struct
// so no generated code is needed on either side.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FidelityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fidelity/v1/fidelity.proto",
}

// RegisterFidelityServer attaches srv to s.
func RegisterFidelityServer(s grpc.ServiceRegistrar, srv FidelityServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// #endregion service-desc

// #region messages
// NewScoreRequest packs a prediction pair into a request message.
func NewScoreRequest(modelOutputs, surrogateOutputs []float64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldModelOutputs:     numberList(modelOutputs),
		fieldSurrogateOutputs: numberList(surrogateOutputs),
	}}
}

// ParseScoreRequest unpacks a request message. A missing field reads as an
// empty list; a non-numeric element is an InvalidInputError.
func ParseScoreRequest(in *structpb.Struct) (model, surrogate []float64, err error) {
	model, err = readNumbers(in, fieldModelOutputs)
	if err != nil {
		return nil, nil, err
	}
	surrogate, err = readNumbers(in, fieldSurrogateOutputs)
	if err != nil {
		return nil, nil, err
	}
	return model, surrogate, nil
}

// NewScoreResponse packs a result into a response message.
func NewScoreResponse(res fidelity.Result) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCorrelation: structpb.NewNumberValue(res.Correlation),
		fieldR2:          structpb.NewNumberValue(res.R2),
	}}
}

// ParseScoreResponse unpacks a response message.
func ParseScoreResponse(out *structpb.Struct) (fidelity.Result, error) {
	corr, ok := out.GetFields()[fieldCorrelation]
	if !ok {
		return fidelity.Result{}, fmt.Errorf("score response: missing %s", fieldCorrelation)
	}
	r2, ok := out.GetFields()[fieldR2]
	if !ok {
		return fidelity.Result{}, fmt.Errorf("score response: missing %s", fieldR2)
	}
	return fidelity.Result{Correlation: corr.GetNumberValue(), R2: r2.GetNumberValue()}, nil
}

func numberList(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func readNumbers(in *structpb.Struct, field string) ([]float64, error) {
	v, ok := in.GetFields()[field]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, &fidelity.InvalidInputError{Reason: field + " must be a list of numbers"}
	}
	out := make([]float64, len(list.ListValue.GetValues()))
	for i, e := range list.ListValue.GetValues() {
		n, ok := e.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, &fidelity.InvalidInputError{Reason: fmt.Sprintf("%s[%d] is not a number", field, i)}
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

// #endregion messages
