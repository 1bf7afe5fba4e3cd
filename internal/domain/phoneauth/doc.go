// Package phoneauth holds the mobile identity challenge model used for customer login.
// Challenges are issued and checked by an external identity provider using a static API key;
// polling policy belongs to the caller.
package phoneauth
