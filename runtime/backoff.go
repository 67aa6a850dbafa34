package runtime

// Retry delays double from one second and cap at one minute.
const (
	backoffBaseMs = 1000
	backoffCapMs  = 60_000
)

// Backoff returns the retry delay in milliseconds before the given attempt.
func Backoff(attempt int) int64 {
	d := int64(backoffBaseMs)
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCapMs {
			return backoffCapMs
		}
	}
	return d
}
