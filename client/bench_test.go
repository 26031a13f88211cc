package client

import (
	"context"
	"testing"
	"time"

	"renderlink/config"
	"renderlink/message"
	"renderlink/rendertest"
)

func setupHostAndClient(b *testing.B, codecName string) *Client {
	b.Helper()
	host := rendertest.NewHost()
	addr, err := host.Start("127.0.0.1:0", nil)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { host.Shutdown(time.Second) })

	cfg := config.NewConfig()
	cfg.Endpoint.Address = addr
	cfg.Codec = codecName
	c, err := Dial(context.Background(), cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

func benchmarkSerial(b *testing.B, codecName string) {
	c := setupHostAndClient(b, codecName)
	req := &message.CreateRequest{Type: message.ObjectTypeNode}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if out := c.Invoke(context.Background(), message.ApiNodeCreate, req, new(message.ObjectRefResponse)); !out.OK() {
			b.Fatal(out)
		}
	}
}

func BenchmarkSerialCallProto(b *testing.B) { benchmarkSerial(b, "proto") }
func BenchmarkSerialCallJSON(b *testing.B)  { benchmarkSerial(b, "json") }

func BenchmarkConcurrentCall(b *testing.B) {
	c := setupHostAndClient(b, "proto")
	req := &message.CreateRequest{Type: message.ObjectTypeNode}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if out := c.Invoke(context.Background(), message.ApiNodeCreate, req, new(message.ObjectRefResponse)); !out.OK() {
				b.Error(out)
				return
			}
		}
	})
}
