package registry

import (
	"context"
	"testing"
	"time"
)

func TestStaticRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewStaticRegistry(DefaultService,
		ServiceInstance{Addr: "127.0.0.1:8002"},
		ServiceInstance{Addr: "127.0.0.1:8001"},
	)

	instances, err := reg.Discover(ctx, DefaultService)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 || instances[0].Addr != "127.0.0.1:8001" {
		t.Fatalf("unexpected instances %+v", instances)
	}

	if err := reg.Deregister(ctx, DefaultService, "127.0.0.1:8001"); err != nil {
		t.Fatal(err)
	}
	instances, _ = reg.Discover(ctx, DefaultService)
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance after deregister, got %d", len(instances))
	}

	if got, _ := reg.Discover(ctx, "other"); len(got) != 0 {
		t.Fatalf("expect no instances for other service, got %+v", got)
	}
}

func TestStaticRegistryWatch(t *testing.T) {
	reg := NewStaticRegistry(DefaultService)
	ctx, cancel := context.WithCancel(context.Background())

	updates := reg.Watch(ctx, DefaultService)
	if err := reg.Register(ctx, DefaultService, ServiceInstance{Addr: "a:1"}, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, DefaultService, ServiceInstance{Addr: "b:1"}, 10); err != nil {
		t.Fatal(err)
	}

	select {
	case instances := <-updates:
		// only the latest list is kept
		if len(instances) != 2 {
			t.Fatalf("expect 2 instances, got %d", len(instances))
		}
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("expect closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}
