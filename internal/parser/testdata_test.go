package parser

const weaponHeader = `#pragma once

#include "CoreMinimal.h"
#include "GameFramework/Actor.h"
#include "CoreMinimal.h"
#include <vector>

DECLARE_DYNAMIC_MULTICAST_DELEGATE_OneParam(FOnHealthChanged, float, NewHealth);

UENUM(BlueprintType)
enum class EWeaponState : uint8
{
	Idle,
	Firing
};

USTRUCT(BlueprintType)
struct FWeaponStats : public FTableRowBase
{
	GENERATED_BODY()

	UPROPERTY(EditAnywhere, meta = (ClampMin = "0"))
	float Damage = 10.f;

	FName SocketName;
};

UCLASS()
class MYGAME_API AWeapon : public AActor, public IInteractable
{
	GENERATED_BODY()

public:
	AWeapon();

	UPROPERTY(VisibleAnywhere)
	UStaticMeshComponent* Mesh;

	UPROPERTY(EditDefaultsOnly)
	TSubclassOf<AProjectile> ProjectileClass;

	FWeaponStats Stats;
	int32 Ammo;

	UFUNCTION(BlueprintCallable)
	void Fire();

protected:
	virtual void BeginPlay() override;
};
`

const weaponSource = `#include "Weapon.h"

AWeapon::AWeapon()
{
	PrimaryActorTick.bCanEverTick = false;
}

void AWeapon::Fire()
{
	if (Ammo <= 0)
	{
		return;
	}
	Ammo--;
}
`
