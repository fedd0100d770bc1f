package grpccomm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dynlb/internal/collective"
	apperrors "github.com/dynlb/pkg/errors"
)

// clientExchanger runs collective rounds through the coordinator's
// Exchange RPC.
type clientExchanger struct {
	conn *grpc.ClientConn
	rank int
	size int
}

// Dial connects a worker rank to the coordinator at addr.
func Dial(addr string, rank, size int) (collective.Comm, error) {
	if rank <= 0 || rank >= size {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument,
			"worker rank must be in [1, %d), got %d (rank 0 is the coordinator)", size, rank)
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "dial coordinator", err)
	}

	return collective.NewComm(&clientExchanger{conn: conn, rank: rank, size: size}), nil
}

func (c *clientExchanger) Exchange(ctx context.Context, op collective.Op, payload []byte) ([]byte, error) {
	req := &exchangeRequest{
		Op:      uint8(op),
		Rank:    int32(c.rank),
		Payload: payload,
	}
	resp := new(exchangeResponse)

	if err := c.conn.Invoke(ctx, exchangeMethod, req, resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "exchange rpc failed", err)
	}
	return resp.Payload, nil
}

func (c *clientExchanger) Rank() int { return c.rank }

func (c *clientExchanger) Size() int { return c.size }

func (c *clientExchanger) Close() error { return c.conn.Close() }
