package testutil

import (
	"context"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type Dialer func(context.Context, string) (net.Conn, error)

// GrpcServer starts a gRPC server on an in-memory listener, with services registered by register.
func GrpcServer(register func(grpc.ServiceRegistrar), options ...grpc.ServerOption) (*grpc.Server, Dialer) {
	server := grpc.NewServer(options...)
	register(server)
	listen := bufconn.Listen(1 << 20)
	go func() {
		if err := server.Serve(listen); err != nil {
			log.Fatalf("Server exited with error: %v", err)
		}
	}()
	return server, func(context.Context, string) (net.Conn, error) {
		return listen.Dial()
	}
}

func GrpcClient(dialer Dialer, options ...grpc.DialOption) *grpc.ClientConn {
	opts := []grpc.DialOption{grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials())}
	opts = append(opts, options...)
	client, err := grpc.NewClient("passthrough://bufnet", opts...)
	if err != nil {
		panic(err)
	}
	return client
}
