package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
)

// #region client-struct
// Client calls a remote FidelityService.
type Client struct {
	conn *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewClient connects to a fidelity gRPC server. Extra dial options are
// appended after the insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion close

// #region score
// Score sends a prediction pair to the server. InvalidArgument and
// FailedPrecondition come back as the matching fidelity error types.
func (c *Client) Score(ctx context.Context, modelOutputs, surrogateOutputs []float64) (fidelity.Result, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ScoreMethod, NewScoreRequest(modelOutputs, surrogateOutputs), out); err != nil {
		return fidelity.Result{}, fromStatus(err)
	}
	return ParseScoreResponse(out)
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("score rpc: %w", err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &fidelity.InvalidInputError{Reason: st.Message()}
	case codes.FailedPrecondition:
		return &fidelity.DegenerateInputError{Reason: st.Message()}
	default:
		return fmt.Errorf("score rpc: %w", err)
	}
}

// #endregion score
