package auth

import (
	"fmt"
	"strings"
)

// ShowTokenGuide displays step-by-step instructions for obtaining API tokens
func ShowTokenGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 API TOKEN GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool authenticates with OAuth 1.0a and needs four token strings.")
	fmt.Println("All four come from the developer portal of your account:")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Create a developer app")
	fmt.Println("   - Sign in at https://developer.twitter.com")
	fmt.Println("   - Create a project and an app inside it")
	fmt.Println()

	fmt.Println("🔑 STEP 2: Generate keys and tokens")
	fmt.Println("   - Open the app's 'Keys and tokens' page")
	fmt.Println("   - Copy the API Key and API Key Secret (consumer key/secret)")
	fmt.Println("   - Generate an Access Token and Access Token Secret")
	fmt.Println("   - The access token must belong to the account whose likes you download")
	fmt.Println()

	fmt.Println("💡 TIPS:")
	fmt.Println("   • Copy each value exactly, without quotes or whitespace")
	fmt.Println("   • Regenerating tokens in the portal invalidates the old ones")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • These tokens give write access to your account")
	fmt.Println("   • NEVER share them with anyone")
	fmt.Println("   • Store them securely (this tool encrypts them)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickTokenGuide shows a condensed version for experienced users
func ShowQuickTokenGuide() {
	fmt.Println("\n🔑 Quick Guide: developer portal → your app → Keys and tokens")
	fmt.Println("   Need: consumer key, consumer secret, access token, access token secret")
}
