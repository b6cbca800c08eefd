package api

import (
	"net/http"
)

func NewRouter(handlers *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", handlers.Health)

	// Customers
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlers.CreateCustomer(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Agreements
	mux.HandleFunc("/agreements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetAgreements(w, r)
		case http.MethodPost:
			handlers.CreateAgreement(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/agreements/", func(w http.ResponseWriter, r *http.Request) {
		segs := pathSegments(r.URL.Path, "/agreements/")
		switch {
		case len(segs) == 1 && r.Method == http.MethodGet:
			handlers.GetAgreement(w, r)

		case len(segs) == 2 && segs[1] == "items" && r.Method == http.MethodGet:
			handlers.GetItems(w, r)
		case len(segs) == 2 && segs[1] == "items" && r.Method == http.MethodPost:
			handlers.AddItem(w, r)
		case len(segs) == 3 && segs[1] == "items" && r.Method == http.MethodPut:
			handlers.UpdateItem(w, r)
		case len(segs) == 4 && segs[1] == "items" && segs[3] == "payments" && r.Method == http.MethodPost:
			handlers.RecordPayment(w, r)

		case len(segs) == 2 && segs[1] == "advance" && r.Method == http.MethodPost:
			handlers.Advance(w, r)
		case len(segs) == 2 && segs[1] == "capture" && r.Method == http.MethodPost:
			handlers.Capture(w, r)

		case len(segs) == 2 && segs[1] == "lock" && r.Method == http.MethodPost:
			handlers.Lock(w, r)
		case len(segs) == 2 && segs[1] == "view-state" && r.Method == http.MethodPost:
			handlers.ViewState(w, r)
		case len(segs) == 2 && segs[1] == "unlock" && r.Method == http.MethodPost:
			handlers.Unlock(w, r)

		case len(segs) == 2 && segs[1] == "snapshots" && r.Method == http.MethodGet:
			handlers.GetSnapshots(w, r)
		case len(segs) == 3 && segs[1] == "snapshots" && segs[2] == "latest" && r.Method == http.MethodGet:
			handlers.GetLatestSnapshot(w, r)

		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		println("[API]", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
