// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/qbionet/photosynthos/services/sensor/datatypes"
)

func testMessage(text string) datatypes.Message {
	return datatypes.Message{
		Text:      text,
		NodeID:    "TEST_node",
		Timestamp: time.Date(2025, 9, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppend_AssignsSequentialIdentity(t *testing.T) {
	log := New()

	for i := 0; i < 5; i++ {
		rec := log.Append(testMessage(fmt.Sprintf("entry %d", i)))
		if rec.Seq != uint64(i+1) {
			t.Errorf("append %d assigned seq %d", i, rec.Seq)
		}
	}

	recs := log.Snapshot()
	if len(recs) != 5 {
		t.Fatalf("snapshot has %d records, want 5", len(recs))
	}
	ids := make(map[string]bool)
	for i, rec := range recs {
		if rec.Seq != uint64(i+1) {
			t.Errorf("record %d out of order: seq %d", i, rec.Seq)
		}
		if ids[rec.ID] {
			t.Errorf("duplicate record id %s", rec.ID)
		}
		ids[rec.ID] = true
	}
}

func TestSnapshot_IsDetachedCopy(t *testing.T) {
	log := New()
	log.Append(testMessage("original"))

	snap := log.Snapshot()
	snap[0].Event = testMessage("tampered")

	if msg := log.Snapshot()[0].Event.(datatypes.Message); msg.Text != "original" {
		t.Errorf("snapshot mutation leaked into log: %q", msg.Text)
	}
}

func TestLen_TracksAppends(t *testing.T) {
	log := New()
	if log.Len() != 0 {
		t.Fatalf("new log reports length %d", log.Len())
	}
	log.Append(testMessage("a"))
	log.Append(testMessage("b"))
	if log.Len() != 2 {
		t.Fatalf("log length %d, want 2", log.Len())
	}
}

func TestAppend_ConcurrentAppendsLoseNothing(t *testing.T) {
	log := New()

	const writers = 20
	const appendsEach = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < appendsEach; j++ {
				log.Append(testMessage(fmt.Sprintf("w%d-%d", id, j)))
			}
		}(i)
	}
	wg.Wait()

	recs := log.Snapshot()
	if len(recs) != writers*appendsEach {
		t.Fatalf("log has %d records, want %d", len(recs), writers*appendsEach)
	}
	seen := make(map[uint64]bool, len(recs))
	for _, rec := range recs {
		if seen[rec.Seq] {
			t.Fatalf("duplicate sequence number %d", rec.Seq)
		}
		if rec.Seq == 0 || rec.Seq > uint64(len(recs)) {
			t.Fatalf("sequence number %d out of range", rec.Seq)
		}
		seen[rec.Seq] = true
	}
}

func TestSubscribe_ReceivesAppendedRecords(t *testing.T) {
	log := New()
	sub := log.Subscribe(8)
	defer sub.Close()

	want := log.Append(testMessage("hello"))

	select {
	case got := <-sub.C:
		if got.Seq != want.Seq || got.ID != want.ID {
			t.Fatalf("subscriber received %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive appended record")
	}
}

func TestSubscribe_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	log := New()
	sub := log.Subscribe(1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			log.Append(testMessage(fmt.Sprintf("burst %d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append blocked on a full subscriber channel")
	}

	// The log itself keeps everything even when the subscriber drops.
	if log.Len() != 100 {
		t.Fatalf("log length %d, want 100", log.Len())
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	log := New()
	sub := log.Subscribe(8)
	sub.Close()

	// Append after close must not panic on a closed channel.
	log.Append(testMessage("after close"))

	if _, ok := <-sub.C; ok {
		t.Fatal("closed subscription delivered a record")
	}
}

func TestRecord_EnvelopeTagsEventKind(t *testing.T) {
	log := New()

	anomaly := datatypes.AnomalyEvent{
		ModeIndex:          3,
		DeltaX:             0.398,
		DeltaP:             1.257,
		UncertaintyProduct: 0.5,
		Timestamp:          time.Now().UTC(),
		NodeID:             "TEST_node",
		Location:           "lab_bench_3",
	}
	rec := log.Append(anomaly)

	env, err := rec.Envelope()
	if err != nil {
		t.Fatalf("unexpected envelope error: %v", err)
	}
	if env.Kind != datatypes.KindAnomaly {
		t.Errorf("envelope kind %q, want %q", env.Kind, datatypes.KindAnomaly)
	}
	if env.Anomaly == nil || env.Anomaly.ModeIndex != 3 {
		t.Errorf("envelope anomaly payload missing: %+v", env)
	}
	if env.Actuation != nil || env.Message != nil {
		t.Errorf("envelope carries foreign payloads: %+v", env)
	}
	if env.Seq != rec.Seq || env.ID != rec.ID {
		t.Errorf("envelope identity mismatch: %+v vs record %+v", env, rec)
	}
}
