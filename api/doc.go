/*
Package api defines the wire types of the explorer HTTP API shared by
httpserver and the clients subpackage.

Error responses carry a stable kind next to the message so that clients can
map failures back onto the interfaces sentinel errors:

	{"kind":"network_not_found","error":"network not found: \"Unknown\""}
*/
package api
