package lifecycle_test

import (
	"sync"
	"testing"

	"limpet/internal/lifecycle"
)

func TestIntentFirstDecisionWins(t *testing.T) {
	recorder := lifecycle.NewIntentRecorder()
	if got := recorder.Current(); got != lifecycle.IntentUnknown {
		t.Fatalf("fresh recorder intent = %s", got)
	}

	if got := recorder.Record(lifecycle.IntentUserRequested); got != lifecycle.IntentUserRequested {
		t.Fatalf("record returned %s", got)
	}
	if got := recorder.Record(lifecycle.IntentSystemRequested); got != lifecycle.IntentUserRequested {
		t.Fatalf("later record overrode intent: %s", got)
	}
	if got := recorder.Current(); got != lifecycle.IntentUserRequested {
		t.Fatalf("intent changed after write: %s", got)
	}
}

func TestIntentUnknownRecordIsNoop(t *testing.T) {
	recorder := lifecycle.NewIntentRecorder()
	if got := recorder.Record(lifecycle.IntentUnknown); got != lifecycle.IntentUnknown {
		t.Fatalf("recording unknown should not decide: %s", got)
	}
	if got := recorder.Record(lifecycle.IntentSystemRequested); got != lifecycle.IntentSystemRequested {
		t.Fatalf("record returned %s", got)
	}
}

func TestIntentConcurrentRecordsSettleOnOneValue(t *testing.T) {
	recorder := lifecycle.NewIntentRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		intent := lifecycle.IntentUserRequested
		if i%2 == 0 {
			intent = lifecycle.IntentSystemRequested
		}
		wg.Add(1)
		go func(in lifecycle.Intent) {
			defer wg.Done()
			recorder.Record(in)
		}(intent)
	}
	wg.Wait()
	got := recorder.Current()
	if got != lifecycle.IntentUserRequested && got != lifecycle.IntentSystemRequested {
		t.Fatalf("intent not decided after concurrent records: %s", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		intent lifecycle.Intent
		want   lifecycle.Disposition
	}{
		{lifecycle.IntentUserRequested, lifecycle.DispositionClean},
		{lifecycle.IntentSystemRequested, lifecycle.DispositionAbnormal},
		{lifecycle.IntentUnknown, lifecycle.DispositionAbnormal},
	}
	for _, tc := range cases {
		if got := lifecycle.Classify(tc.intent); got != tc.want {
			t.Fatalf("Classify(%s) = %s, want %s", tc.intent, got, tc.want)
		}
	}
	if lifecycle.DispositionClean.Code() != 0 {
		t.Fatal("clean disposition must map to exit code 0")
	}
	if lifecycle.DispositionAbnormal.Code() == 0 {
		t.Fatal("abnormal disposition must map to a non-zero exit code")
	}
}
