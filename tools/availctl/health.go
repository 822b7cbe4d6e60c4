package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/md-rashed-zaman/meetbook/libs/grpcx"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	c := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpcx.Dial(cmd.Context(), addr, grpcx.DialOptions{Timeout: timeout})
			if err != nil {
				return err
			}
			defer conn.Close()

			resp, err := healthpb.NewHealthClient(conn).Check(cmd.Context(), &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", service, resp.GetStatus())
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&addr, "addr", config.String("AVAILABILITY_GRPC_ADDR", "localhost:9094"), "gRPC address")
	f.StringVar(&service, "service", "meetbook.availability.v1", "health service name; empty checks the server as a whole")
	f.DurationVar(&timeout, "timeout", 3*time.Second, "dial timeout")
	return c
}
