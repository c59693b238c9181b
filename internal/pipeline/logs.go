package pipeline

var failedLogs = []string{
	"2024-01-15T11:15:00Z [INFO] Starting pipeline execution",
	"2024-01-15T11:15:30Z [INFO] Build stage completed successfully",
	"2024-01-15T11:16:00Z [INFO] Starting test stage",
	"2024-01-15T11:17:00Z [WARN] Database connection slow",
	"2024-01-15T11:18:45Z [ERROR] Test timeout after 300s",
	"2024-01-15T11:18:45Z [ERROR] Database connection failed",
	"2024-01-15T11:18:45Z [ERROR] Pipeline failed at testing stage",
}

var runningLogs = []string{
	"2024-01-15T11:45:00Z [INFO] Starting pipeline execution",
	"2024-01-15T11:46:00Z [INFO] Build stage completed successfully",
	"2024-01-15T11:47:00Z [INFO] Migration stage in progress...",
	"2024-01-15T11:48:00Z [INFO] 80% complete - applying schema changes",
}

var successLogs = []string{
	"2024-01-15T10:30:00Z [INFO] Starting pipeline execution",
	"2024-01-15T10:32:00Z [INFO] Build stage completed successfully",
	"2024-01-15T10:33:00Z [INFO] Test stage completed successfully",
	"2024-01-15T10:35:23Z [INFO] Deployment completed successfully",
}

// Logs returns the canned log lines for a pipeline's current status.
func (r *Registry) Logs(id string) ([]string, error) {
	item, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return LogsFor(item.Status), nil
}

func LogsFor(status Status) []string {
	var source []string
	switch status {
	case StatusFailed:
		source = failedLogs
	case StatusRunning:
		source = runningLogs
	default:
		source = successLogs
	}
	return append([]string(nil), source...)
}
