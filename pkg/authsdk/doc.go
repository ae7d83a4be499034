/*
Package authsdk is a Go client for the twofactor login service, and the home
of the error and response types its handlers write.

# Logging in

Login is two requests against the same endpoint. The client keeps the
service's session cookie in its jar so the second request finds the first:

	client := authsdk.NewSDKClient("https://login.example.com")

	session, err := client.Login(ctx, "nate", "password")
	var challenge *authsdk.TwoFactorRequiredError
	if errors.As(err, &challenge) {
		session, err = client.Verify(ctx, code, true) // remember this device
	}
	if err != nil {
		return err
	}

Accounts without a TOTP secret get a Session from Login directly.

# Errors

Every failure is an *APIError with a stable Code:

  - credentials_missing: no username/password, or no pending login for a code
  - invalid_credentials: wrong username or password
  - invalid_code: the code did not match; the pending login is kept
  - login_url_mismatch: the login was posted to a URL that does not accept it

# Enrollment

	enroll, err := session.EnrollTOTP(ctx) // enroll.QRCode is a data: URI
	err = session.ConfirmTOTP(ctx, codeFromApp)
	err = session.DisableTOTP(ctx, currentCode)
*/
package authsdk
