package domain

import "testing"

func TestContentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ContentStatus
		ok       bool
	}{
		{ContentStatusUploaded, ContentStatusTranscribing, true},
		{ContentStatusTranscribing, ContentStatusAnalyzing, true},
		{ContentStatusAnalyzing, ContentStatusReady, true},
		{ContentStatusTranscribing, ContentStatusError, true},
		{ContentStatusError, ContentStatusTranscribing, true},
		{ContentStatusReady, ContentStatusTranscribing, false},
		{ContentStatusUploaded, ContentStatusReady, false},
		{ContentStatusReady, ContentStatusError, false},
		{ContentStatusAnalyzing, ContentStatusTranscribing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestClipStatusTransitions(t *testing.T) {
	if !ClipStatusPending.CanTransition(ClipStatusProcessing) {
		t.Error("pending clip should be claimable for processing")
	}
	if ClipStatusPending.CanTransition(ClipStatusReady) {
		t.Error("pending clip must not jump straight to ready")
	}
	if !ClipStatusError.CanTransition(ClipStatusProcessing) {
		t.Error("errored clip should allow a render retry")
	}
	if !ClipStatusReady.CanTransition(ClipStatusProcessing) {
		t.Error("ready clip should allow a re-render")
	}
}

func TestScheduledPostTransitions(t *testing.T) {
	if !ScheduledPostStatusScheduled.CanTransition(ScheduledPostStatusPublishing) {
		t.Error("scheduled -> publishing should be allowed")
	}
	if ScheduledPostStatusScheduled.CanTransition(ScheduledPostStatusPublished) {
		t.Error("scheduled -> published must pass through publishing")
	}
	if ScheduledPostStatusPublished.CanTransition(ScheduledPostStatusPublishing) {
		t.Error("published post is terminal")
	}
	for _, s := range []ScheduledPostStatus{ScheduledPostStatusPublished, ScheduledPostStatusFailed, ScheduledPostStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestJobStatusTransitions(t *testing.T) {
	if !JobStatusRunning.CanTransition(JobStatusQueued) {
		t.Error("running job should be able to yield back to queued")
	}
	if JobStatusSucceeded.CanTransition(JobStatusRunning) {
		t.Error("succeeded job is terminal")
	}
}

func TestPlanUnlimited(t *testing.T) {
	if !PlanAgency.Unlimited() {
		t.Error("agency plan should be unlimited")
	}
	for _, p := range []Plan{PlanFree, PlanStarter, PlanPro} {
		if p.Unlimited() {
			t.Errorf("%s plan should be metered", p)
		}
	}
}

func TestValidators(t *testing.T) {
	if !ValidAspectRatio("9:16") || ValidAspectRatio("2:3") {
		t.Error("aspect ratio validation broken")
	}
	if !ValidPlatform("twitter") || ValidPlatform("myspace") {
		t.Error("platform validation broken")
	}
	if !ValidSourceType("youtube") || ValidSourceType("vimeo") {
		t.Error("source type validation broken")
	}
}
