package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/api"
	"github.com/vocdoni/bonsai-local/client"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/db/inmemory"
	"github.com/vocdoni/bonsai-local/engine"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/prover"
	"github.com/vocdoni/bonsai-local/snark"
	"github.com/vocdoni/bonsai-local/storage"
)

func TestServicesLifecycle(t *testing.T) {
	c := qt.New(t)
	StatsMonitorInterval = 10 * time.Millisecond

	database, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)
	st := storage.New(database, 0)
	sessions := jobs.NewRegistry(jobs.KindSession, st, 0)
	snarks := jobs.NewRegistry(jobs.KindSnark, st, 0)
	p, err := prover.NewGroth16Prover(1, true)
	c.Assert(err, qt.IsNil)

	es := NewEngine(engine.New(st, sessions, snarks, p, snark.Groth16Converter{}, nil, engine.Config{}), sessions, snarks)
	c.Assert(es.Start(context.Background()), qt.IsNil)

	as, err := NewAPI(&api.Config{Storage: st, Sessions: sessions, Snarks: snarks}, "127.0.0.1", 0, true)
	c.Assert(err, qt.IsNil)
	c.Assert(as.Start(context.Background()), qt.IsNil)
	c.Assert(as.Start(context.Background()), qt.IsNotNil)
	_, port := as.HostPort()
	c.Assert(port, qt.Not(qt.Equals), 0)

	cli, err := client.New(as.URL())
	c.Assert(err, qt.IsNil)
	c.Assert(cli.Ping(context.Background()), qt.IsNil)
	time.Sleep(30 * time.Millisecond) // let the monitor log

	as.Stop()
	as.Stop()
	es.Stop()
	_, err = http.Get(as.URL() + api.PingEndpoint)
	c.Assert(err, qt.IsNotNil)
}
