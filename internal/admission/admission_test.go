package admission

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSelfManagedCapacityBoundary(t *testing.T) {
	c := NewSelfManaged(3, nil)
	for i := 0; i < 3; i++ {
		if !c.Acquire("case") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if c.Acquire("overflow") {
		t.Fatal("acquire beyond capacity must be refused")
	}
	c.Release("case")
	if !c.Acquire("after-release") {
		t.Fatal("slot freed by release must be grantable")
	}
}

func TestSelfManagedSnapshot(t *testing.T) {
	c := NewSelfManaged(2, nil)
	c.Acquire("smoke")
	st := c.Snapshot()
	if st.Capacity != 2 || st.InUse != 1 || st.Available != 1 {
		t.Fatalf("unexpected snapshot: %+v", st)
	}
	if len(st.Tasks) != 1 || st.Tasks[0] != "smoke" {
		t.Fatalf("unexpected task list: %v", st.Tasks)
	}
}

func TestSelfManagedConcurrentAcquire(t *testing.T) {
	const capacity = 4
	c := NewSelfManaged(capacity, nil)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Acquire("t") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != capacity {
		t.Fatalf("expected exactly %d grants, got %d", capacity, granted)
	}
}

func TestSelfManagedReleaseWithoutAcquire(t *testing.T) {
	c := NewSelfManaged(1, nil)
	c.Release("ghost")
	st := c.Snapshot()
	if st.InUse != 0 || st.Available != 1 {
		t.Fatalf("release without acquire must not underflow: %+v", st)
	}
}

func TestAPIQueriedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"capacity": 10, "in_use": 7, "available": 3, "tasks": ["a", "b"]}`))
	}))
	defer srv.Close()

	c := NewAPIQueried(srv.URL, srv.Client(), nil)
	st := c.Snapshot()
	if st.Capacity != 10 || st.Available != 3 || len(st.Tasks) != 2 {
		t.Fatalf("unexpected remote status: %+v", st)
	}
	if !c.Acquire("case") {
		t.Fatal("advisory acquire should pass while capacity remains")
	}
}

func TestAPIQueriedRefusesWhenExhaustedOrUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"capacity": 2, "in_use": 2, "available": 0}`))
	}))
	c := NewAPIQueried(srv.URL, srv.Client(), nil)
	if c.Acquire("case") {
		t.Fatal("advisory acquire must refuse at zero availability")
	}
	srv.Close()
	if c.Acquire("case") {
		t.Fatal("unreachable endpoint must refuse admission")
	}
}
