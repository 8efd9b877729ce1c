// Package signal marks methods that call security-relevant platform APIs
// and extracts the part of the call graph around them.
package signal

import (
	"sort"
	"strings"

	"jarcalls/internal/facts"
)

// Categories of sensitive call targets.
const (
	CatNet         = "net"         // sockets, URL connections, HTTP clients
	CatEncryption  = "encryption"  // javax.crypto, key stores, digests
	CatExec        = "exec"        // Runtime.exec, ProcessBuilder
	CatReflection  = "reflection"  // java.lang.reflect, Class.forName, MethodHandles
	CatClassLoad   = "classload"   // class loaders, defineClass, DexClassLoader
	CatNative      = "native"      // System.loadLibrary, System.load
	CatSerialize   = "serialize"   // ObjectInputStream.readObject
	CatFile        = "file"        // java.io file streams, java.nio.file
	CatScript      = "script"      // javax.script engines
	CatSMS         = "sms"         // android SmsManager
	CatTelephony   = "telephony"   // TelephonyManager, IMEI, carrier
	CatLocation    = "location"    // LocationManager, fused location
	CatContacts    = "contacts"    // ContactsContract
	CatDeviceInfo  = "device"      // Settings.Secure, Build, ANDROID_ID
	CatWebView     = "webview"     // WebView JavaScript bridge
	CatCamera      = "camera"      // android camera APIs
	CatClipboard   = "clipboard"   // ClipboardManager
	CatAttribution = "attribution" // install referrer
)

// Rule matches call targets by declaring class prefix and, optionally,
// method name. Class prefixes use internal names (java/net/, java/lang/Runtime).
type Rule struct {
	Category string
	Owner    string
	Method   string // "" matches every method of Owner
}

// Rules is the built-in rule table.
var Rules = []Rule{
	{CatNet, "java/net/Socket", ""},
	{CatNet, "java/net/ServerSocket", ""},
	{CatNet, "java/net/DatagramSocket", ""},
	{CatNet, "java/net/URL", "openConnection"},
	{CatNet, "java/net/URL", "openStream"},
	{CatNet, "java/net/HttpURLConnection", ""},
	{CatNet, "java/net/http/", ""},
	{CatNet, "javax/net/", ""},
	{CatNet, "java/nio/channels/SocketChannel", ""},
	{CatNet, "okhttp3/", ""},
	{CatNet, "org/apache/http/", ""},

	{CatEncryption, "javax/crypto/", ""},
	{CatEncryption, "java/security/MessageDigest", ""},
	{CatEncryption, "java/security/KeyStore", ""},
	{CatEncryption, "java/security/KeyPairGenerator", ""},
	{CatEncryption, "java/security/Signature", ""},
	{CatEncryption, "java/security/SecureRandom", ""},
	{CatEncryption, "android/security/keystore/", ""},

	{CatExec, "java/lang/Runtime", "exec"},
	{CatExec, "java/lang/ProcessBuilder", ""},

	{CatReflection, "java/lang/reflect/", ""},
	{CatReflection, "java/lang/Class", "forName"},
	{CatReflection, "java/lang/Class", "getDeclaredMethod"},
	{CatReflection, "java/lang/Class", "getMethod"},
	{CatReflection, "java/lang/Class", "getDeclaredField"},
	{CatReflection, "java/lang/invoke/MethodHandles$Lookup", "findVirtual"},
	{CatReflection, "java/lang/invoke/MethodHandles$Lookup", "findStatic"},

	{CatClassLoad, "java/lang/ClassLoader", "defineClass"},
	{CatClassLoad, "java/lang/ClassLoader", "loadClass"},
	{CatClassLoad, "java/net/URLClassLoader", ""},
	{CatClassLoad, "dalvik/system/", ""},

	{CatNative, "java/lang/System", "loadLibrary"},
	{CatNative, "java/lang/System", "load"},
	{CatNative, "java/lang/Runtime", "loadLibrary"},

	{CatSerialize, "java/io/ObjectInputStream", "readObject"},
	{CatSerialize, "java/io/ObjectInputStream", "readUnshared"},
	{CatSerialize, "java/beans/XMLDecoder", ""},

	{CatFile, "java/io/FileInputStream", ""},
	{CatFile, "java/io/FileOutputStream", ""},
	{CatFile, "java/io/RandomAccessFile", ""},
	{CatFile, "java/io/File", "delete"},
	{CatFile, "java/nio/file/Files", ""},

	{CatScript, "javax/script/", ""},

	{CatSMS, "android/telephony/SmsManager", ""},
	{CatTelephony, "android/telephony/TelephonyManager", ""},
	{CatLocation, "android/location/", ""},
	{CatLocation, "com/google/android/gms/location/", ""},
	{CatContacts, "android/provider/ContactsContract", ""},
	{CatDeviceInfo, "android/provider/Settings$Secure", ""},
	{CatDeviceInfo, "android/net/wifi/WifiInfo", "getMacAddress"},
	{CatWebView, "android/webkit/WebView", "addJavascriptInterface"},
	{CatWebView, "android/webkit/WebView", "evaluateJavascript"},
	{CatWebView, "android/webkit/WebView", "loadUrl"},
	{CatCamera, "android/hardware/camera2/", ""},
	{CatCamera, "android/hardware/Camera", ""},
	{CatClipboard, "android/content/ClipboardManager", ""},
	{CatAttribution, "com/android/installreferrer/", ""},
}

// Classifier matches call targets against a rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier over rules. A nil slice selects Rules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = Rules
	}
	return &Classifier{rules: rules}
}

// Classify returns the sorted categories of a call target.
func (c *Classifier) Classify(target facts.Location) []string {
	owner := strings.TrimPrefix(target.Owner(), "/")
	if owner == "" {
		return nil
	}
	method := methodName(target)
	var cats []string
	for _, r := range c.rules {
		if !ownerMatches(owner, r.Owner) {
			continue
		}
		if r.Method != "" && r.Method != method {
			continue
		}
		if !containsCat(cats, r.Category) {
			cats = append(cats, r.Category)
		}
	}
	sort.Strings(cats)
	return cats
}

// ownerMatches treats a prefix ending in '/' as a package and anything
// else as one class, so java/lang/Class does not match java/lang/ClassLoader.
func ownerMatches(owner, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(owner, prefix)
	}
	return owner == prefix
}

func methodName(l facts.Location) string {
	m := l.Member()
	if i := strings.IndexByte(m, '('); i >= 0 {
		m = m[:i]
	}
	return m
}

// Severity levels.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// CategorySeverity returns the severity level for a category.
func CategorySeverity(cat string) string {
	switch cat {
	case CatExec, CatClassLoad, CatNative, CatSerialize, CatScript, CatSMS, CatContacts, CatWebView:
		return SeverityHigh
	case CatNet, CatEncryption, CatReflection, CatTelephony, CatLocation, CatDeviceInfo, CatCamera, CatAttribution:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MaxSeverity returns the highest severity from a list of categories.
func MaxSeverity(categories []string) string {
	best := ""
	for _, c := range categories {
		switch CategorySeverity(c) {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			best = SeverityMedium
		default:
			if best == "" {
				best = SeverityLow
			}
		}
	}
	if best == "" {
		return SeverityLow
	}
	return best
}

func containsCat(cats []string, cat string) bool {
	for _, c := range cats {
		if c == cat {
			return true
		}
	}
	return false
}
