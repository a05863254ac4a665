// internal/middleware/logging_test.go
package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditPathMasksApprovalToken(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "approval token redacted",
			path: "/v1/approval/abc123-1756700000000-Xy9ZkQ2mNp",
			want: "/v1/approval/[redacted]",
		},
		{
			name: "approval decision path redacted",
			path: "/v1/approval/abc123-1756700000000-Xy9ZkQ2mNp/approve",
			want: "/v1/approval/[redacted]/approve",
		},
		{
			name: "non-approval path untouched",
			path: "/v1/jobs/550e8400-e29b-41d4-a716-446655440000",
			want: "/v1/jobs/550e8400-e29b-41d4-a716-446655440000",
		},
		{
			name: "bare approval segment untouched",
			path: "/v1/approval",
			want: "/v1/approval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auditPath(tt.path))
		})
	}
}
