// Package batch generates the pages of a content plan.
//
// A Runner drains one project at a time: pages are generated strictly in list
// order, a failed page never stops the batch, and cancellation is honoured
// only between pages. Article settings resolve page over batch over project.
package batch
