package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobLifecycle(t *testing.T) {
	c := qt.New(t)
	m := New()

	m.JobCreated("session")
	m.JobCreated("session")
	m.JobStarted("session")
	m.JobStarted("session")
	c.Assert(testutil.ToFloat64(m.jobsInFlight.WithLabelValues("session")), qt.Equals, 2.0)

	m.JobFinished("session", "succeeded", time.Second)
	m.JobFinished("session", "failed", time.Millisecond)
	c.Assert(testutil.ToFloat64(m.jobsCreated.WithLabelValues("session")), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(m.jobsInFlight.WithLabelValues("session")), qt.Equals, 0.0)
	c.Assert(testutil.ToFloat64(m.jobsFinished.WithLabelValues("session", "succeeded")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.jobsFinished.WithLabelValues("session", "failed")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.jobsCreated.WithLabelValues("snark")), qt.Equals, 0.0)

	m.Rejected("queue_full")
	c.Assert(testutil.ToFloat64(m.rejections.WithLabelValues("queue_full")), qt.Equals, 1.0)
}

func TestNilCollector(t *testing.T) {
	var m *Collector
	m.JobCreated("session")
	m.JobStarted("session")
	m.JobFinished("session", "succeeded", time.Second)
	m.Rejected("storage_full")
	m.WatchArtifacts(func() (int, uint64) { return 0, 0 })
}

func TestHandler(t *testing.T) {
	c := qt.New(t)
	m := New()
	m.WatchArtifacts(func() (int, uint64) { return 3, 1024 })
	m.JobCreated("snark")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)

	text := string(body)
	c.Assert(strings.Contains(text, `bonsai_jobs_created_total{kind="snark"} 1`), qt.IsTrue)
	c.Assert(strings.Contains(text, "bonsai_artifacts 3"), qt.IsTrue)
	c.Assert(strings.Contains(text, "bonsai_artifacts_bytes 1024"), qt.IsTrue)
	c.Assert(strings.Contains(text, "go_goroutines"), qt.IsTrue)
}
