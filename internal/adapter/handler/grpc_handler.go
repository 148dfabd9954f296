package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	InventoryServiceName = "stockledger.v1.InventoryService"
	// CodecName is the content-subtype clients must request.
	CodecName = "json"
)

// jsonCodec carries the domain JSON shapes over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type ProductID struct {
	ID string `json:"id"`
}

type EditProductRequest struct {
	ID    string               `json:"id"`
	Patch service.ProductPatch `json:"patch"`
}

type DeleteProductReply struct {
	Success bool `json:"success"`
}

type ProductList struct {
	Products []domain.Product `json:"products"`
}

type SaleList struct {
	Sales []domain.Sale `json:"sales"`
}

type TransactionList struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
}

type InventoryServer interface {
	ListProducts(context.Context, *Empty) (*ProductList, error)
	GetProduct(context.Context, *ProductID) (*domain.Product, error)
	AddProduct(context.Context, *service.NewProduct) (*domain.Product, error)
	EditProduct(context.Context, *EditProductRequest) (*domain.Product, error)
	DeleteProduct(context.Context, *ProductID) (*DeleteProductReply, error)
	ListSales(context.Context, *Empty) (*SaleList, error)
	RecordSale(context.Context, *service.NewSale) (*domain.Sale, error)
	ListTransactions(context.Context, *Empty) (*TransactionList, error)
	Report(context.Context, *Empty) (*service.Report, error)
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListProducts", InventoryServer.ListProducts),
		unary("GetProduct", InventoryServer.GetProduct),
		unary("AddProduct", InventoryServer.AddProduct),
		unary("EditProduct", InventoryServer.EditProduct),
		unary("DeleteProduct", InventoryServer.DeleteProduct),
		unary("ListSales", InventoryServer.ListSales),
		unary("RecordSale", InventoryServer.RecordSale),
		unary("ListTransactions", InventoryServer.ListTransactions),
		unary("Report", InventoryServer.Report),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockledger/v1/inventory",
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(InventoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + InventoryServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var _ InventoryServer = (*GRPCHandler)(nil)

// GRPCHandler serves InventoryServer on top of the inventory service.
type GRPCHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewGRPCHandler(inventory *service.InventoryService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{inventory: inventory, logger: logger}
}

func (h *GRPCHandler) ListProducts(ctx context.Context, _ *Empty) (*ProductList, error) {
	products, err := h.inventory.ListProducts(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &ProductList{Products: products}, nil
}

func (h *GRPCHandler) GetProduct(ctx context.Context, req *ProductID) (*domain.Product, error) {
	product, err := h.inventory.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	return product, nil
}

func (h *GRPCHandler) AddProduct(ctx context.Context, req *service.NewProduct) (*domain.Product, error) {
	product, err := h.inventory.AddProduct(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return product, nil
}

func (h *GRPCHandler) EditProduct(ctx context.Context, req *EditProductRequest) (*domain.Product, error) {
	product, err := h.inventory.EditProduct(ctx, req.ID, req.Patch)
	if err != nil {
		return nil, grpcError(err)
	}
	return product, nil
}

func (h *GRPCHandler) DeleteProduct(ctx context.Context, req *ProductID) (*DeleteProductReply, error) {
	if err := h.inventory.DeleteProduct(ctx, req.ID); err != nil {
		return nil, grpcError(err)
	}
	return &DeleteProductReply{Success: true}, nil
}

func (h *GRPCHandler) ListSales(ctx context.Context, _ *Empty) (*SaleList, error) {
	sales, err := h.inventory.ListSales(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &SaleList{Sales: sales}, nil
}

func (h *GRPCHandler) RecordSale(ctx context.Context, req *service.NewSale) (*domain.Sale, error) {
	sale, err := h.inventory.RecordSale(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return sale, nil
}

func (h *GRPCHandler) ListTransactions(ctx context.Context, _ *Empty) (*TransactionList, error) {
	txs, err := h.inventory.ListTransactions(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &TransactionList{Transactions: txs}, nil
}

func (h *GRPCHandler) Report(ctx context.Context, _ *Empty) (*service.Report, error) {
	report, err := h.inventory.Report(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return report, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, "not enough stock")
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrPersistence):
		return status.Error(codes.Unavailable, "storage unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryLogger logs every call with its method, status code and latency.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if code == codes.Unavailable || code == codes.Internal {
			logger.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("rpc", fields...)
		}
		return resp, err
	}
}

// InventoryClient calls InventoryService using the JSON codec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+InventoryServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) ListProducts(ctx context.Context, opts ...grpc.CallOption) (*ProductList, error) {
	return invoke[ProductList](ctx, c.cc, "ListProducts", &Empty{}, opts...)
}

func (c *InventoryClient) GetProduct(ctx context.Context, id string, opts ...grpc.CallOption) (*domain.Product, error) {
	return invoke[domain.Product](ctx, c.cc, "GetProduct", &ProductID{ID: id}, opts...)
}

func (c *InventoryClient) AddProduct(ctx context.Context, in *service.NewProduct, opts ...grpc.CallOption) (*domain.Product, error) {
	return invoke[domain.Product](ctx, c.cc, "AddProduct", in, opts...)
}

func (c *InventoryClient) EditProduct(ctx context.Context, in *EditProductRequest, opts ...grpc.CallOption) (*domain.Product, error) {
	return invoke[domain.Product](ctx, c.cc, "EditProduct", in, opts...)
}

func (c *InventoryClient) DeleteProduct(ctx context.Context, id string, opts ...grpc.CallOption) (*DeleteProductReply, error) {
	return invoke[DeleteProductReply](ctx, c.cc, "DeleteProduct", &ProductID{ID: id}, opts...)
}

func (c *InventoryClient) ListSales(ctx context.Context, opts ...grpc.CallOption) (*SaleList, error) {
	return invoke[SaleList](ctx, c.cc, "ListSales", &Empty{}, opts...)
}

func (c *InventoryClient) RecordSale(ctx context.Context, in *service.NewSale, opts ...grpc.CallOption) (*domain.Sale, error) {
	return invoke[domain.Sale](ctx, c.cc, "RecordSale", in, opts...)
}

func (c *InventoryClient) ListTransactions(ctx context.Context, opts ...grpc.CallOption) (*TransactionList, error) {
	return invoke[TransactionList](ctx, c.cc, "ListTransactions", &Empty{}, opts...)
}

func (c *InventoryClient) Report(ctx context.Context, opts ...grpc.CallOption) (*service.Report, error) {
	return invoke[service.Report](ctx, c.cc, "Report", &Empty{}, opts...)
}
