// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies voter identity on incoming requests.

Identity issuance belongs to the upstream authentication service. This
package only checks that a request carries a voter id signed with the shared
salt.

# Voter Tokens

Tokens are the voter id followed by an HMAC-SHA256 signature:

	token := auth.IssueVoterToken("user-42", salt)   // "user-42.<sig>"
	voterID, err := auth.VoterFromToken(token, salt)

The signature is URL-safe base64 without padding. Voter ids may contain dots;
the signature is everything after the last one.

# Requests

VoterFromRequest reads X-Voter-Token, or Authorization: Bearer <token>:

	voterID, err := auth.VoterFromRequest(r, cfg.VoterTokenSalt)

A missing token yields ErrAuthRequired, a bad one ErrInvalidToken.

# Random IDs

GenerateID creates random hex identifiers:

	id, err := auth.GenerateID(16) // 32 hex characters
*/
package auth
