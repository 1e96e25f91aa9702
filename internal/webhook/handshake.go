package webhook

// Handshake answers the provider's subscription check. It returns the challenge
// to echo when mode is "subscribe" and the verify token matches.
func Handshake(mode, token, challenge, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken || challenge == "" {
		return "", false
	}
	return challenge, true
}
