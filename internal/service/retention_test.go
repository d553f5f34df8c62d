package service

import (
	"context"
	"testing"
	"time"
)

type fakeRetentionStore struct {
	clickBatches    []int64 // rows reported per DeleteClicksBefore call
	activityBatches []int64
	clickCutoffs    []time.Time
	activityCutoffs []time.Time
	err             error
}

func (f *fakeRetentionStore) DeleteClicksBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	f.clickCutoffs = append(f.clickCutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.clickBatches) == 0 {
		return 0, nil
	}
	n := f.clickBatches[0]
	f.clickBatches = f.clickBatches[1:]
	return n, nil
}

func (f *fakeRetentionStore) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	f.activityCutoffs = append(f.activityCutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.activityBatches) == 0 {
		return 0, nil
	}
	n := f.activityBatches[0]
	f.activityBatches = f.activityBatches[1:]
	return n, nil
}

func TestSweepDrainsFullBatches(t *testing.T) {
	store := &fakeRetentionStore{
		clickBatches:    []int64{100, 100, 30},
		activityBatches: []int64{10},
	}
	s := NewRetentionSweeper(store, RetentionConfig{Enabled: true, BatchSize: 100})

	s.Sweep(context.Background())

	// Full batches keep the loop going; the short batch ends it.
	if len(store.clickCutoffs) != 3 {
		t.Fatalf("click delete called %d times, want 3", len(store.clickCutoffs))
	}
	if len(store.activityCutoffs) != 1 {
		t.Fatalf("activity delete called %d times, want 1", len(store.activityCutoffs))
	}
}

func TestSweepCutoffsHonorTTLs(t *testing.T) {
	store := &fakeRetentionStore{}
	cfg := RetentionConfig{
		Enabled:     true,
		ClickTTL:    7 * 24 * time.Hour,
		ActivityTTL: 90 * 24 * time.Hour,
		BatchSize:   100,
	}
	s := NewRetentionSweeper(store, cfg)

	before := time.Now()
	s.Sweep(context.Background())

	clickCutoff := store.clickCutoffs[0]
	if age := before.Sub(clickCutoff); age < 7*24*time.Hour-time.Minute || age > 7*24*time.Hour+time.Minute {
		t.Fatalf("click cutoff age = %v, want ~7d", age)
	}
	activityCutoff := store.activityCutoffs[0]
	if age := before.Sub(activityCutoff); age < 90*24*time.Hour-time.Minute || age > 90*24*time.Hour+time.Minute {
		t.Fatalf("activity cutoff age = %v, want ~90d", age)
	}
}

func TestSweepErrorOnOneTableDoesNotStopOther(t *testing.T) {
	store := &fakeRetentionStore{err: errStore}
	s := NewRetentionSweeper(store, RetentionConfig{Enabled: true, BatchSize: 100})

	s.Sweep(context.Background())

	if len(store.clickCutoffs) != 1 || len(store.activityCutoffs) != 1 {
		t.Fatalf("sweep calls = %d/%d, want 1/1", len(store.clickCutoffs), len(store.activityCutoffs))
	}
}

func TestSweeperDisabledStopsImmediately(t *testing.T) {
	s := NewRetentionSweeper(&fakeRetentionStore{}, RetentionConfig{Enabled: false})
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Fatal("disabled sweeper did not stop promptly")
	}
}
