// Package secure keeps resolved secret values encrypted in memory.
//
// Values are sealed in memguard enclaves as soon as they are resolved and
// only decrypted for the moment a request header is built:
//
//	buf, err := secure.NewSecureBuffer([]byte(value))
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	err = buf.Use(func(plain []byte) error {
//	    req.Header.Set("Ocp-Apim-Subscription-Key", string(plain))
//	    return nil
//	})
//
// Call memguard.Purge in main before exit to wipe every remaining enclave key.
package secure
