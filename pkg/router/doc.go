// Package router fans out buffered events to filtered subscribers. Each
// subscription owns a bounded channel; a full channel marks that
// subscriber slow and drops it rather than blocking the producer.
package router
