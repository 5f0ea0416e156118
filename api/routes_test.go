package api

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEndpointWithParam(t *testing.T) {
	c := qt.New(t)
	c.Assert(EndpointWithParam(SessionStatusEndpoint, JobIDURLParam, "abc"), qt.Equals, "/sessions/status/abc")
	c.Assert(EndpointWithParam(ImageEndpoint, ImageIDURLParam, "a b"), qt.Equals, "/images/a%20b")
	c.Assert(EndpointWithParam(InputUploadEndpoint, "limit", "1"), qt.Equals, "/inputs/upload?limit=1")
	c.Assert(EndpointWithParam("/inputs/upload?a=1", "b", "2&"), qt.Equals, "/inputs/upload?a=1&b=2%26")
}
