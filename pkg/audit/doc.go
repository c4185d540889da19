// Package audit records who did what to which workspace or file.
//
// Services call Emit after every mutation and every policy denial:
//
//	audit.Emit(ctx, s.audit, &audit.AuditEvent{
//		EventType:    audit.EventTypeDataFileUpload,
//		Status:       audit.EventStatusSuccess,
//		ResourceType: audit.ResourceTypeFile,
//		ResourceID:   file.ID,
//	})
//
// Emit stamps the time, request ID and user ID from the context. A failing
// sink is logged and never fails the operation.
//
// FileLogger writes JSON lines through logrus and rotates by size.
// NoOpLogger discards events and MemoryLogger keeps them for inspection.
package audit
