package domain

// Content moves through the processing pipeline, or straight to failed.
type ContentStatus string

const (
	ContentStatusUploading    ContentStatus = "uploading"
	ContentStatusUploaded     ContentStatus = "uploaded"
	ContentStatusTranscribing ContentStatus = "transcribing"
	ContentStatusAnalyzing    ContentStatus = "analyzing"
	ContentStatusReady        ContentStatus = "ready"
	ContentStatusError        ContentStatus = "error"
)

type ClipStatus string

const (
	ClipStatusPending    ClipStatus = "pending"
	ClipStatusProcessing ClipStatus = "processing"
	ClipStatusReady      ClipStatus = "ready"
	ClipStatusError      ClipStatus = "error"
)

type GeneratedContentStatus string

const (
	GeneratedContentStatusDraft     GeneratedContentStatus = "draft"
	GeneratedContentStatusScheduled GeneratedContentStatus = "scheduled"
	GeneratedContentStatusPublished GeneratedContentStatus = "published"
	GeneratedContentStatusFailed    GeneratedContentStatus = "failed"
)

type ScheduledPostStatus string

const (
	ScheduledPostStatusScheduled  ScheduledPostStatus = "scheduled"
	ScheduledPostStatusPublishing ScheduledPostStatus = "publishing"
	ScheduledPostStatusPublished  ScheduledPostStatus = "published"
	ScheduledPostStatusFailed     ScheduledPostStatus = "failed"
	ScheduledPostStatusCancelled  ScheduledPostStatus = "cancelled"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

var contentTransitions = map[ContentStatus][]ContentStatus{
	ContentStatusUploading:    {ContentStatusUploaded, ContentStatusError},
	ContentStatusUploaded:     {ContentStatusTranscribing, ContentStatusError},
	ContentStatusTranscribing: {ContentStatusAnalyzing, ContentStatusError},
	ContentStatusAnalyzing:    {ContentStatusReady, ContentStatusError},
	// Errored content may be reprocessed from the top. Ready is terminal.
	ContentStatusError: {ContentStatusTranscribing},
}

var clipTransitions = map[ClipStatus][]ClipStatus{
	ClipStatusPending:    {ClipStatusProcessing},
	ClipStatusProcessing: {ClipStatusReady, ClipStatusError},
	ClipStatusError:      {ClipStatusProcessing},
	// Ready clips can be re-rendered, e.g. with a different aspect ratio.
	ClipStatusReady: {ClipStatusProcessing},
}

var generatedContentTransitions = map[GeneratedContentStatus][]GeneratedContentStatus{
	GeneratedContentStatusDraft:     {GeneratedContentStatusScheduled},
	GeneratedContentStatusScheduled: {GeneratedContentStatusPublished, GeneratedContentStatusFailed, GeneratedContentStatusDraft},
	GeneratedContentStatusFailed:    {GeneratedContentStatusScheduled},
}

var scheduledPostTransitions = map[ScheduledPostStatus][]ScheduledPostStatus{
	ScheduledPostStatusScheduled:  {ScheduledPostStatusPublishing, ScheduledPostStatusCancelled},
	ScheduledPostStatusPublishing: {ScheduledPostStatusPublished, ScheduledPostStatusFailed},
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusSucceeded, JobStatusFailed, JobStatusCancelled, JobStatusQueued},
	JobStatusFailed:  {JobStatusQueued},
}

func contains[S ~string](set []S, v S) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (s ContentStatus) CanTransition(to ContentStatus) bool {
	return contains(contentTransitions[s], to)
}

func (s ContentStatus) Terminal() bool {
	return s == ContentStatusReady || s == ContentStatusError
}

func (s ClipStatus) CanTransition(to ClipStatus) bool {
	return contains(clipTransitions[s], to)
}

func (s ClipStatus) Terminal() bool {
	return s == ClipStatusReady || s == ClipStatusError
}

func (s GeneratedContentStatus) CanTransition(to GeneratedContentStatus) bool {
	return contains(generatedContentTransitions[s], to)
}

func (s ScheduledPostStatus) CanTransition(to ScheduledPostStatus) bool {
	return contains(scheduledPostTransitions[s], to)
}

func (s ScheduledPostStatus) Terminal() bool {
	return s == ScheduledPostStatusPublished || s == ScheduledPostStatusFailed || s == ScheduledPostStatusCancelled
}

func (s JobStatus) CanTransition(to JobStatus) bool {
	return contains(jobTransitions[s], to)
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}
