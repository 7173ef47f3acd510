package bus

const TopicDeviceEvents = "bigredbutton.events"

const (
	TypeConnectionChanged  = "connection.changed"
	TypeLinkEstablished    = "link.established"
	TypeReadinessPolled    = "readiness.polled"
	TypeCandidatePublished = "candidate.published"
	TypeButtonChanged      = "button.changed"
	TypeDispatchStarted    = "dispatch.started"
	TypeDispatchFinished   = "dispatch.finished"
	TypeDispatchAbandoned  = "dispatch.abandoned"
	TypeDispatchIgnored    = "dispatch.ignored"
	TypeTaskFailed         = "task.failed"
)
