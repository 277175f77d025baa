package notify

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/ObiAU/newsfeed/internal/models"
)

func TestMultiAndDeferred(t *testing.T) {
	var got []string
	record := models.ReporterFunc(func(source string, err error) {
		got = append(got, source+": "+err.Error())
	})

	deferred := &Deferred{}
	reporter := Multi{NewLogReporter(nil), nil, deferred}

	reporter.Report("The Guardian", errors.New("dropped"))
	assert.Equal(t, 0, len(got))

	deferred.Attach(record)
	reporter.Report("The Guardian", errors.New("status 502"))
	assert.Equal(t, []string{"The Guardian: status 502"}, got)
}
