// testserver starts a duckview server whose profiles read fixture datasets
// served from the same process, for E2E testing without network access.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/duckview/internal/api"
	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/bundle/sqlite"
	"github.com/seantiz/duckview/internal/config"
	"github.com/seantiz/duckview/internal/engine"
	"github.com/seantiz/duckview/internal/store"
	"github.com/seantiz/duckview/internal/view"
)

const usersFixture = `{"users":[` +
	`{"id":1,"firstName":"Emily","lastName":"Johnson","age":28,"address":{"city":"Phoenix"}},` +
	`{"id":2,"firstName":"Michael","lastName":"Williams","age":35,"address":{"city":"Houston"}},` +
	`{"id":3,"firstName":"Sophia","lastName":"Brown","age":42,"address":{"city":"Washington"}}` +
	`],"total":3,"skip":0,"limit":3}`

const flightsFixture = "FlightDate|UniqueCarrier|OriginCityName|DestCityName\n" +
	"1988-01-01|AA|New York, NY|Los Angeles, CA\n" +
	"1988-01-02|AA|New York, NY|Los Angeles, CA\n" +
	"1988-01-03|AA|New York, NY|Los Angeles, CA\n"

// fixtures serves the datasets on a loopback listener and returns its base URL.
func fixtures() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	r := chi.NewRouter()
	r.Get("/users", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(usersFixture))
	})
	r.Get("/flights.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(flightsFixture))
	})
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return "http://" + ln.Addr().String(), nil
}

func main() {
	addr := ":8080"
	if v := os.Getenv("DUCKVIEW_LISTEN_ADDR"); v != "" {
		addr = v
	}

	base, err := fixtures()
	if err != nil {
		log.Fatalf("failed to serve fixtures: %v", err)
	}

	profiles := config.DefaultProfiles()
	for i := range profiles {
		switch profiles[i].Name {
		case "users":
			profiles[i].DatasetURL = base + "/users"
		case "sample-csv":
			profiles[i].DatasetURL = base + "/flights.csv"
		}
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logger := config.NewLogger(os.Stdout, slog.LevelInfo)
	reg := bundle.NewRegistry(sqlite.New())
	sessions := engine.NewManager(engine.ManagerConfig{
		Registry:     reg,
		WorkDir:      os.TempDir(),
		QueryTimeout: 10 * time.Second,
		Logger:       logger,
	})
	views := view.NewController(view.ControllerConfig{
		Profiles: profiles,
		Opener:   sessions,
		History:  db,
		Logger:   logger,
	})
	srv := api.NewServer(addr, db, reg, sessions, views, logger)

	logger.Info("testserver: starting", "addr", addr, "fixtures", base)
	runErr := srv.Run()
	_ = views.UnmountAll(context.Background())
	_ = sessions.CloseAll(context.Background())
	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
