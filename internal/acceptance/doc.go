// Package acceptance runs the intake and coordination flows end to end as
// godog scenarios against in-process adapters.
package acceptance
