package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMediaUpload allows uploading audio prompt files.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionStudentsRead allows viewing student lists and details.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsWrite allows creating and updating students.
	PermissionStudentsWrite Permission = "students:write"

	// PermissionStudentsResetSession allows resetting a student's active session.
	PermissionStudentsResetSession Permission = "students:reset_session"

	// PermissionAssignmentsRead allows viewing assignment lists and details.
	PermissionAssignmentsRead Permission = "assignments:read"

	// PermissionAssignmentsWrite allows creating assignments and updating own assignments.
	PermissionAssignmentsWrite Permission = "assignments:write"

	// PermissionAssignmentsWriteAll allows managing every author's assignments.
	PermissionAssignmentsWriteAll Permission = "assignments:write_all"

	// PermissionAssignmentsPublish allows publishing assignments to students.
	PermissionAssignmentsPublish Permission = "assignments:publish"

	// PermissionSubmissionsRead allows viewing the grading queue.
	PermissionSubmissionsRead Permission = "submissions:read"

	// PermissionSubmissionsGrade allows scoring submissions.
	PermissionSubmissionsGrade Permission = "submissions:grade"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionStudentsResetSession,
	PermissionAssignmentsRead,
	PermissionAssignmentsWrite,
	PermissionAssignmentsWriteAll,
	PermissionAssignmentsPublish,
	PermissionSubmissionsRead,
	PermissionSubmissionsGrade,
}
