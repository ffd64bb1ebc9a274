// Package decision turns a release feed into an update verdict.
//
// Only the newest entry that passes the channel policy and the skip tags is
// compared with the installed version: the newest eligible release wins, not
// the newest release overall.
package decision
