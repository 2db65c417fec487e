package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dialHealth(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, healthpb.HealthClient, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, err
	}
	return cc, healthpb.NewHealthClient(cc), nil
}

// cmdGRPCHealth queries grpc.health.v1 on the server's health listener.
func cmdGRPCHealth(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlags("grpc-health")
	addr := fs.String("addr", "localhost:3001", "gRPC health addr")
	service := fs.String("service", "", "component name (empty = overall)")
	caPath := fs.String("cacert", "", "CA cert (PEM)")
	skipVerify := fs.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := fs.Bool("plaintext", false, "no TLS")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		creds credentials.TransportCredentials
		err   error
	)
	if *plaintext {
		creds = insecure.NewCredentials()
	} else if creds, err = loadTLS(*caPath, *skipVerify); err != nil {
		return err
	}

	cc, cli, err := dialHealth(*addr, creds)
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		if s, ok := status.FromError(err); ok {
			return fmt.Errorf("rpc error: code=%s msg=%s", s.Code(), s.Message())
		}
		return err
	}
	fmt.Fprintln(out, resp.GetStatus().String())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errors.New("not serving")
	}
	return nil
}
