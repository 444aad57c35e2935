// Package subscription converts due recurring subscriptions into one-time
// orders and sends upcoming-order reminders.
//
// Each subscription in a batch is processed independently: one failure is
// data in the run summary, not an abort. Only an error from the initial
// due-subscription query fails the whole run. The schedule only advances
// after the order for the current due date has been durably created.
package subscription
