package main

import (
	"fmt"
	"log"

	"github.com/easexpo/marketplace-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for EasExpo Marketplace")
	fmt.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or secret store:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", secrets.JWTRefreshSecret)
	fmt.Printf("RAZORPAY_WEBHOOK_SECRET=%s\n", secrets.RazorpayWebhookSecret)
	fmt.Println()
	fmt.Println("The webhook secret must also be entered in the Razorpay dashboard.")
	fmt.Println("Never commit these values to version control.")
	fmt.Println("===========================================")
}
