package history

import (
	"image"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/viam-modules/people-counting/counter"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndList(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []counter.Event{
		{SessionID: "a", TrackID: 0, Direction: counter.Entering, Point: image.Pt(10, 120), Time: base},
		{SessionID: "a", TrackID: 4, Direction: counter.Exiting, Point: image.Pt(30, 410), Time: base.Add(time.Second)},
		{SessionID: "b", TrackID: 0, Direction: counter.Entering, Point: image.Pt(50, 130), Time: base.Add(2 * time.Second)},
	}
	for _, ev := range events {
		rec := RecordFromEvent(ev)
		test.That(t, s.Insert(&rec), test.ShouldBeNil)
		test.That(t, rec.CrossingID, test.ShouldNotBeEmpty)
	}

	recs, err := s.List("a")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(recs), test.ShouldEqual, 2)
	test.That(t, recs[0].TrackID, test.ShouldEqual, 0)
	test.That(t, recs[0].Direction, test.ShouldEqual, counter.Entering)
	test.That(t, recs[0].X, test.ShouldEqual, 10)
	test.That(t, recs[0].Y, test.ShouldEqual, 120)
	test.That(t, recs[0].CreatedAtNs, test.ShouldEqual, base.UnixNano())
	test.That(t, recs[1].Direction, test.ShouldEqual, counter.Exiting)

	all, err := s.List("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(all), test.ShouldEqual, 3)
	test.That(t, all[2].SessionID, test.ShouldEqual, "b")

	none, err := s.List("missing")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, none, test.ShouldBeEmpty)
}

func TestTotals(t *testing.T) {
	s := openTestStore(t)
	entering, exiting, err := s.Totals("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entering, test.ShouldEqual, 0)
	test.That(t, exiting, test.ShouldEqual, 0)

	for _, rec := range []Record{
		{SessionID: "a", TrackID: 0, Direction: counter.Entering},
		{SessionID: "a", TrackID: 1, Direction: counter.Entering},
		{SessionID: "a", TrackID: 1, Direction: counter.Exiting},
		{SessionID: "b", TrackID: 2, Direction: counter.Exiting},
	} {
		rec := rec
		test.That(t, s.Insert(&rec), test.ShouldBeNil)
		test.That(t, rec.CreatedAtNs, test.ShouldBeGreaterThan, 0)
	}

	entering, exiting, err = s.Totals("a")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entering, test.ShouldEqual, 2)
	test.That(t, exiting, test.ShouldEqual, 1)

	entering, exiting, err = s.Totals("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entering, test.ShouldEqual, 2)
	test.That(t, exiting, test.ShouldEqual, 2)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	test.That(t, err, test.ShouldBeNil)
	rec := Record{SessionID: "a", TrackID: 9, Direction: counter.Exiting}
	test.That(t, s.Insert(&rec), test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)

	s, err = Open(path)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close()
	recs, err := s.List("a")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(recs), test.ShouldEqual, 1)
	test.That(t, recs[0].CrossingID, test.ShouldEqual, rec.CrossingID)
}

func TestDuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	rec := Record{CrossingID: "fixed", SessionID: "a", Direction: counter.Entering}
	test.That(t, s.Insert(&rec), test.ShouldBeNil)
	dup := rec
	test.That(t, s.Insert(&dup), test.ShouldNotBeNil)
}
