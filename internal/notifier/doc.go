// Package notifier delivers reminder texts to users through a transport
// adapter.
//
// Every send waits on a shared token bucket so bursts of due reminders stay
// under the platform's global rate limit. A send is attempted once; failures
// are returned to the caller and never retried here.
//
// The service also carries operator alerts for the logging package.
package notifier
