package syncwire

import "strings"

// Image references embed the owning account and the content hash:
// {account}/images/{hash}. The prefix check is the sole per-object access
// control, since the object store itself has no ACLs.

// ImageRef builds the storage reference for an account's image.
func ImageRef(account, hash string) string {
	return account + "/images/" + hash
}

// AccountOwnsRef reports whether ref belongs to account.
func AccountOwnsRef(account, ref string) bool {
	return account != "" && strings.HasPrefix(ref, account+"/images/")
}

// HashFromRef extracts the content hash from a storage reference, or ""
// when ref does not look like one.
func HashFromRef(ref string) string {
	i := strings.LastIndex(ref, "/images/")
	if i < 0 {
		return ""
	}
	hash := ref[i+len("/images/"):]
	if hash == "" || strings.Contains(hash, "/") {
		return ""
	}
	return hash
}
