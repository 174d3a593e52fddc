package seoul

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

func TestListPolicyIDsRequestsCategoryAndPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youth/infoData/sprtInfo/list.do" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("sc_plcyFldCd"); got != "023020" {
			t.Fatalf("category code = %q", got)
		}
		if got := r.URL.Query().Get("pageIndex"); got != "3" {
			t.Fatalf("page index = %q", got)
		}
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	client := New(srv.URL, 100)
	ids, err := client.ListPolicyIDs(context.Background(), "023020", 3)
	if err != nil {
		t.Fatalf("ListPolicyIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
}

func TestFetchPolicyStampsCollectionFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("plcyBizId"); got != "PLC-2026-001" {
			t.Fatalf("policy id = %q", got)
		}
		w.Write([]byte(detailHTML))
	}))
	defer srv.Close()

	client := New(srv.URL, 100)
	rec, err := client.FetchPolicy(context.Background(), "PLC-2026-001", "주거")
	if err != nil {
		t.Fatalf("FetchPolicy: %v", err)
	}
	if rec.Category != "주거" {
		t.Fatalf("category = %q", rec.Category)
	}
	if rec.IndexStatus != domain.StatusCollected {
		t.Fatalf("index status = %q", rec.IndexStatus)
	}
	if rec.CollectedAt.IsZero() || rec.CreatedAt.IsZero() {
		t.Fatal("collection timestamps not set")
	}
}

func TestFetchPolicyRejectsPageWithoutTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>삭제된 정책입니다</p></body></html>"))
	}))
	defer srv.Close()

	client := New(srv.URL, 100)
	_, err := client.FetchPolicy(context.Background(), "PLC-GONE", "주거")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFetchPolicyPropagatesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, 100)
	if _, err := client.FetchPolicy(context.Background(), "PLC-2026-001", "주거"); err == nil {
		t.Fatal("expected error for 503")
	}
}
