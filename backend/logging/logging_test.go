package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
	"github.com/bobg/cas/backend/mem"
	"github.com/bobg/cas/testutil"
)

func TestBlobStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	testutil.BlobStore(context.Background(), t, New(mem.New(), logger))
}

func TestLogging(t *testing.T) {
	var (
		ctx          = context.Background()
		logger, hook = test.NewNullLogger()
		s            = New(mem.New(), logger)
		blob         = []byte("logged")
		d            = cas.Sum(cas.DefaultHasher, blob)
	)
	logger.SetLevel(logrus.DebugLevel)

	if _, err := s.Put(ctx, d, blob); err != nil {
		t.Fatal(err)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Put was not logged")
	}
	if entry.Message != "Put" || entry.Level != logrus.DebugLevel {
		t.Errorf("got %s entry %q, want debug entry %q", entry.Level, entry.Message, "Put")
	}
	if entry.Data["added"] != true {
		t.Errorf("got added=%v, want true", entry.Data["added"])
	}
	if entry.Data["digest"] != d {
		t.Errorf("got digest %v, want %s", entry.Data["digest"], d)
	}

	_, err := s.Get(ctx, cas.Sum(cas.DefaultHasher, []byte("missing")))
	if !errors.Is(err, cas.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, cas.ErrNotFound)
	}
	entry = hook.LastEntry()
	if entry.Level != logrus.ErrorLevel {
		t.Errorf("got %s entry for failed Get, want error", entry.Level)
	}
	if entry.Data[logrus.ErrorKey] != cas.ErrNotFound {
		t.Errorf("got logged error %v, want %v", entry.Data[logrus.ErrorKey], cas.ErrNotFound)
	}
}

type closing struct {
	*mem.Store
	closed bool
}

func (c *closing) Close() error {
	c.closed = true
	return nil
}

func TestClose(t *testing.T) {
	logger, _ := test.NewNullLogger()

	nested := &closing{Store: mem.New()}
	if err := backend.Close(New(nested, logger)); err != nil {
		t.Fatal(err)
	}
	if !nested.closed {
		t.Error("nested store was not closed")
	}

	// Stores without Close are left alone.
	if err := backend.Close(New(mem.New(), logger)); err != nil {
		t.Error(err)
	}
}
